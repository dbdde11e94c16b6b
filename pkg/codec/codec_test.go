package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/models"
)

func TestDecodeText(t *testing.T) {
	d, err := Decode("hello world", models.DataTypeText)
	require.NoError(t, err)
	assert.Equal(t, KindText, d.Kind)
	assert.Equal(t, "hello world", d.Text)

	// Any text is valid text, including what looks like other types
	d, err = Decode("42", models.DataTypeText)
	require.NoError(t, err)
	assert.Equal(t, KindText, d.Kind)
	assert.Equal(t, "42", d.Text)
}

func TestDecodeNumber(t *testing.T) {
	cases := map[string]float64{
		"42":      42,
		"-3.5":    -3.5,
		"0":       0,
		"150.00":  150,
		" 89.99 ": 89.99,
	}
	for text, want := range cases {
		d, err := Decode(text, models.DataTypeNumber)
		require.NoError(t, err, "input %q", text)
		assert.Equal(t, KindNumber, d.Kind)
		assert.Equal(t, want, d.Number, "input %q", text)
	}

	for _, text := range []string{"abc", "", "Inf", "-Inf", "NaN", "1.2.3"} {
		d, err := Decode(text, models.DataTypeNumber)
		require.Error(t, err, "input %q", text)
		assert.True(t, errors.IsType(err, errors.ErrorTypeDecode))
		assert.Equal(t, KindInvalid, d.Kind)
		assert.Equal(t, text, d.Raw)
	}
}

func TestDecodeBoolean(t *testing.T) {
	for _, text := range []string{"true", "TRUE", "True", " true "} {
		d, err := Decode(text, models.DataTypeBoolean)
		require.NoError(t, err, "input %q", text)
		assert.Equal(t, KindBoolean, d.Kind)
		assert.True(t, d.Boolean)
	}

	d, err := Decode("false", models.DataTypeBoolean)
	require.NoError(t, err)
	assert.False(t, d.Boolean)

	for _, text := range []string{"yes", "1", "", "truthy"} {
		_, err := Decode(text, models.DataTypeBoolean)
		require.Error(t, err, "input %q", text)
	}
}

func TestDecodeDate(t *testing.T) {
	d, err := Decode("2024-01-15", models.DataTypeDate)
	require.NoError(t, err)
	assert.Equal(t, KindDate, d.Kind)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d.Date)

	for _, text := range []string{"15/01/2024", "2024-13-01", "not a date", ""} {
		_, err := Decode(text, models.DataTypeDate)
		require.Error(t, err, "input %q", text)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode("x", models.DataType("blob"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

// Encoding a decoded value must reproduce text that decodes to the same
// value, for every data type.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		text     string
		dataType models.DataType
	}{
		{"plain text", models.DataTypeText},
		{"", models.DataTypeText},
		{"42", models.DataTypeNumber},
		{"-3.25", models.DataTypeNumber},
		{"true", models.DataTypeBoolean},
		{"false", models.DataTypeBoolean},
		{"2024-06-30", models.DataTypeDate},
	}
	for _, tc := range cases {
		first, err := Decode(tc.text, tc.dataType)
		require.NoError(t, err, "decode %q as %s", tc.text, tc.dataType)

		encoded, err := Encode(first)
		require.NoError(t, err)

		second, err := Decode(encoded, tc.dataType)
		require.NoError(t, err, "re-decode %q as %s", encoded, tc.dataType)
		assert.Equal(t, first, second, "round trip of %q as %s", tc.text, tc.dataType)
	}
}

func TestEncodeNumberCanonicalForm(t *testing.T) {
	s, err := Encode(Decoded{Kind: KindNumber, Number: 150})
	require.NoError(t, err)
	assert.Equal(t, "150", s)

	s, err = Encode(Decoded{Kind: KindNumber, Number: 0.00001})
	require.NoError(t, err)
	assert.NotContains(t, s, "e", "no exponent form")
}

func TestDecodeCellNeverFails(t *testing.T) {
	assert.Equal(t, Empty(), DecodeCell(nil, models.DataTypeNumber))

	bad := "not a number"
	d := DecodeCell(&bad, models.DataTypeNumber)
	assert.Equal(t, KindInvalid, d.Kind)
	assert.Equal(t, bad, d.Raw)

	good := "7"
	d = DecodeCell(&good, models.DataTypeNumber)
	assert.Equal(t, KindNumber, d.Kind)
	assert.Equal(t, float64(7), d.Number)
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "", Empty().String())
	assert.Equal(t, "garbage", Invalid("garbage").String())
	assert.Equal(t, "true", Decoded{Kind: KindBoolean, Boolean: true}.String())
	assert.Equal(t, "2024-01-15", Decoded{Kind: KindDate, Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}.String())
}
