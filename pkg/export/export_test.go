package export

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"io"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/pkg/engine"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/models"
	"github.com/gridbase/gridbase/pkg/storage/memory"
	"github.com/gridbase/gridbase/pkg/testutil"
)

func seedEngine(t *testing.T) (*engine.Engine, int64) {
	eng := engine.New(memory.NewStore(testutil.Logger(t)), engine.Options{}, testutil.Logger(t))
	ctx := testutil.Context(t)

	table, err := eng.CreateTable(ctx, 1, "Customers")
	require.NoError(t, err)
	name, err := eng.AddColumn(ctx, table.ID, "Name", models.DataTypeText, nil)
	require.NoError(t, err)
	age, err := eng.AddColumn(ctx, table.ID, "Age", models.DataTypeNumber, nil)
	require.NoError(t, err)

	for _, r := range [][2]string{{"John Doe", "30"}, {"Jane Smith", "25"}} {
		row, err := eng.AddRow(ctx, table.ID)
		require.NoError(t, err)
		_, err = eng.SetCell(ctx, row.ID, name.ID, testutil.Ptr(r[0]))
		require.NoError(t, err)
		_, err = eng.SetCell(ctx, row.ID, age.ID, testutil.Ptr(r[1]))
		require.NoError(t, err)
	}
	return eng, table.ID
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)

	for _, name := range []string{"gzip", "lz4", "s2", "zstd", "none"} {
		_, err := ParseCompression(name)
		require.NoError(t, err, name)
	}

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestExportJSON(t *testing.T) {
	eng, tableID := seedEngine(t)
	x := NewExporter(eng)

	var buf bytes.Buffer
	require.NoError(t, x.Export(testutil.Context(t), tableID, FormatJSON, CompressionNone, &buf))

	var doc struct {
		Table   models.Table    `json:"table"`
		Columns []models.Column `json:"columns"`
		Rows    []struct {
			RowID  int64             `json:"rowId"`
			Values map[string]string `json:"values"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Customers", doc.Table.Name)
	require.Len(t, doc.Columns, 2)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "John Doe", doc.Rows[0].Values["Name"])
	assert.Equal(t, "30", doc.Rows[0].Values["Age"])
}

func TestExportCSV(t *testing.T) {
	eng, tableID := seedEngine(t)
	x := NewExporter(eng)

	var buf bytes.Buffer
	require.NoError(t, x.Export(testutil.Context(t), tableID, FormatCSV, CompressionNone, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Name", "Age"}, records[0])
	assert.Equal(t, []string{"John Doe", "30"}, records[1])
	assert.Equal(t, []string{"Jane Smith", "25"}, records[2])
}

// Every compression must decompress back to the identical uncompressed
// document.
func TestExportCompressionRoundTrip(t *testing.T) {
	eng, tableID := seedEngine(t)
	x := NewExporter(eng)
	ctx := testutil.Context(t)

	var plain bytes.Buffer
	require.NoError(t, x.Export(ctx, tableID, FormatCSV, CompressionNone, &plain))

	decompress := map[Compression]func(io.Reader) (io.Reader, error){
		CompressionGzip: func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		CompressionLZ4:  func(r io.Reader) (io.Reader, error) { return lz4.NewReader(r), nil },
		CompressionS2:   func(r io.Reader) (io.Reader, error) { return s2.NewReader(r), nil },
		CompressionZstd: func(r io.Reader) (io.Reader, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		},
	}

	for compression, open := range decompress {
		var buf bytes.Buffer
		require.NoError(t, x.Export(ctx, tableID, FormatCSV, compression, &buf), compression)

		r, err := open(&buf)
		require.NoError(t, err, compression)
		got, err := io.ReadAll(r)
		require.NoError(t, err, compression)
		assert.Equal(t, plain.Bytes(), got, compression)
	}
}

func TestExportUnknownTable(t *testing.T) {
	eng, _ := seedEngine(t)
	x := NewExporter(eng)

	var buf bytes.Buffer
	err := x.Export(testutil.Context(t), 999, FormatJSON, CompressionNone, &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing written on failure")
}
