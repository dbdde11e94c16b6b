// Package export renders a table as a downloadable JSON or CSV document
// with optional compression of the output stream.
package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/gridbase/gridbase/pkg/engine"
	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/models"
)

// Format selects the export document shape
type Format string

const (
	// FormatJSON exports table metadata, columns and projected rows as JSON
	FormatJSON Format = "json"
	// FormatCSV exports a header row of column names plus one record per row
	FormatCSV Format = "csv"
)

// ParseFormat validates a format name, defaulting empty to JSON
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", errors.Newf(errors.ErrorTypeInvalidArgument, "unknown export format %q", name)
}

// ContentType returns the media type of the uncompressed document
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Exporter renders tables through an engine
type Exporter struct {
	engine *engine.Engine
}

// NewExporter creates an exporter over the given engine
func NewExporter(eng *engine.Engine) *Exporter {
	return &Exporter{engine: eng}
}

// jsonDocument is the shape of a JSON export
type jsonDocument struct {
	Table   *models.Table    `json:"table"`
	Columns []*models.Column `json:"columns"`
	Rows    []jsonRow        `json:"rows"`
}

type jsonRow struct {
	RowID  int64             `json:"rowId"`
	Values map[string]string `json:"values"`
}

// Export writes the table in the given format to w, compressed with c
func (x *Exporter) Export(ctx context.Context, tableID int64, f Format, c Compression, w io.Writer) error {
	table, err := x.engine.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	cols, err := x.engine.ListColumns(ctx, tableID)
	if err != nil {
		return err
	}
	rows, err := x.engine.ProjectRows(ctx, tableID)
	if err != nil {
		return err
	}

	cw, err := newWriter(w, c)
	if err != nil {
		return err
	}

	switch f {
	case FormatCSV:
		err = writeCSV(cw, cols, rows)
	default:
		err = writeJSON(cw, table, cols, rows)
	}
	if err != nil {
		_ = cw.Close()
		return err
	}

	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to flush export stream")
	}
	return nil
}

func writeJSON(w io.Writer, table *models.Table, cols []*models.Column, rows []*engine.ProjectedRow) error {
	doc := jsonDocument{
		Table:   table,
		Columns: cols,
		Rows:    make([]jsonRow, 0, len(rows)),
	}
	for _, row := range rows {
		jr := jsonRow{RowID: row.RowID, Values: make(map[string]string, len(cols))}
		for _, col := range cols {
			jr.Values[col.Name] = row.Cells[col.ID].String()
		}
		doc.Rows = append(doc.Rows, jr)
	}
	return json.EncodeTo(w, doc)
}

func writeCSV(w io.Writer, cols []*models.Column, rows []*engine.ProjectedRow) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.Name
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write csv header")
	}

	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = row.Cells[col.ID].String()
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write csv record")
		}
	}

	cw.Flush()
	return cw.Error()
}
