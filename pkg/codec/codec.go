// Package codec converts between a column's declared data type and the
// textual storage representation of a cell value. Decoding failures are
// non-fatal by design: a projection returns the raw text flagged invalid
// rather than failing the row.
package codec

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/models"
)

// dateLayout is the ISO-8601 calendar date form accepted for date columns
const dateLayout = "2006-01-02"

// Kind discriminates the variants of a Decoded value
type Kind string

const (
	// KindEmpty marks a cell with no stored value
	KindEmpty Kind = "empty"
	// KindText is a text value
	KindText Kind = "text"
	// KindNumber is an IEEE-754 double
	KindNumber Kind = "number"
	// KindBoolean is a boolean value
	KindBoolean Kind = "boolean"
	// KindDate is a calendar date
	KindDate Kind = "date"
	// KindInvalid carries raw text that does not parse as the declared type
	KindInvalid Kind = "invalid"
)

// Decoded is the tagged union produced by interpreting stored cell text
// against a column's data type. Exactly the variant named by Kind is set;
// Raw is populated for KindInvalid so the original text is never lost.
type Decoded struct {
	Kind    Kind      `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Number  float64   `json:"number,omitempty"`
	Boolean bool      `json:"boolean,omitempty"`
	Date    time.Time `json:"date,omitempty"`
	Raw     string    `json:"raw,omitempty"`
}

// Empty is the explicit marker for an absent cell
func Empty() Decoded {
	return Decoded{Kind: KindEmpty}
}

// Invalid wraps raw text that failed to decode
func Invalid(raw string) Decoded {
	return Decoded{Kind: KindInvalid, Raw: raw}
}

// Decode interprets stored text as the given data type. It returns a
// decode-typed error when the text does not parse; callers that must not
// fail per-cell should use DecodeCell instead.
func Decode(text string, dataType models.DataType) (Decoded, error) {
	switch dataType {
	case models.DataTypeText:
		return Decoded{Kind: KindText, Text: text}, nil

	case models.DataTypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return Invalid(text), errors.Newf(errors.ErrorTypeDecode, "not numeric: %q", text)
		}
		return Decoded{Kind: KindNumber, Number: f}, nil

	case models.DataTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "true":
			return Decoded{Kind: KindBoolean, Boolean: true}, nil
		case "false":
			return Decoded{Kind: KindBoolean, Boolean: false}, nil
		}
		return Invalid(text), errors.Newf(errors.ErrorTypeDecode, "not boolean: %q", text)

	case models.DataTypeDate:
		t, err := time.Parse(dateLayout, strings.TrimSpace(text))
		if err != nil {
			return Invalid(text), errors.Newf(errors.ErrorTypeDecode, "not a date: %q", text)
		}
		return Decoded{Kind: KindDate, Date: t}, nil
	}

	return Invalid(text), errors.Newf(errors.ErrorTypeInvalidArgument, "unknown data type %q", dataType)
}

// DecodeCell interprets an optionally absent stored value. It never fails:
// absent values decode to Empty and malformed text decodes to Invalid
// carrying the raw text, so one bad cell cannot hide the rest of a table.
func DecodeCell(value *string, dataType models.DataType) Decoded {
	if value == nil {
		return Empty()
	}
	d, err := Decode(*value, dataType)
	if err != nil {
		return Invalid(*value)
	}
	return d
}

// Encode renders a decoded value back to its storage text. Numbers use a
// canonical no-exponent decimal form so round-trips are stable.
func Encode(v Decoded) (string, error) {
	switch v.Kind {
	case KindText:
		return v.Text, nil
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64), nil
	case KindBoolean:
		return strconv.FormatBool(v.Boolean), nil
	case KindDate:
		return v.Date.Format(dateLayout), nil
	case KindInvalid:
		// Invalid values re-encode to their raw text unchanged
		return v.Raw, nil
	}
	return "", errors.Newf(errors.ErrorTypeInvalidArgument, "cannot encode %s value", v.Kind)
}

// String renders the decoded value for display and CSV export. Empty cells
// render as the empty string.
func (d Decoded) String() string {
	switch d.Kind {
	case KindText:
		return d.Text
	case KindNumber:
		return strconv.FormatFloat(d.Number, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(d.Boolean)
	case KindDate:
		return d.Date.Format(dateLayout)
	case KindInvalid:
		return d.Raw
	}
	return ""
}
