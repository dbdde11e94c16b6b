// Package storage defines the persistence boundary of the tabular data
// engine. A Store owns table and column definitions, rows, the sparse EAV
// cell values, and the cell reference graph. Compound operations (column
// removal, row removal, table deletion) are atomic: either every cascaded
// delete lands or none do.
//
// Two implementations exist: an index-backed in-memory store
// (storage/memory) and a PostgreSQL store (storage/postgres).
package storage

import (
	"context"

	"github.com/gridbase/gridbase/pkg/models"
)

// Store is the persistence interface consumed by the engine. Implementations
// report failures with pkg/errors typed errors: not_found for unresolvable
// ids, invalid_argument for bad input, storage for backend faults.
type Store interface {
	// CreateTable creates a table owned by a project
	CreateTable(ctx context.Context, projectID int64, name string) (*models.Table, error)

	// GetTable returns a table by id
	GetTable(ctx context.Context, tableID int64) (*models.Table, error)

	// ListTables returns the tables of a project ordered by id
	ListTables(ctx context.Context, projectID int64) ([]*models.Table, error)

	// DeleteTable deletes a table, cascading to its columns, rows, cells
	// and any references touching those cells
	DeleteTable(ctx context.Context, tableID int64) error

	// AddColumn appends a column, or inserts it at position when non-nil,
	// shifting trailing columns so order indices stay dense and unique
	AddColumn(ctx context.Context, tableID int64, name string, dataType models.DataType, position *int) (*models.Column, error)

	// RemoveColumn deletes a column, its cell values, and any references
	// touching those cells, then renumbers trailing columns to close the gap
	RemoveColumn(ctx context.Context, tableID, columnID int64) error

	// RenameColumn updates a column's name
	RenameColumn(ctx context.Context, tableID, columnID int64, newName string) (*models.Column, error)

	// RetypeColumn updates a column's data type without touching stored
	// values; existing text is reinterpreted lazily at read time
	RetypeColumn(ctx context.Context, tableID, columnID int64, newType models.DataType) (*models.Column, error)

	// ListColumns returns a table's columns ordered ascending by OrderIndex
	ListColumns(ctx context.Context, tableID int64) ([]*models.Column, error)

	// AddRow appends a row to a table
	AddRow(ctx context.Context, tableID int64) (*models.Row, error)

	// GetRow returns a row by id
	GetRow(ctx context.Context, rowID int64) (*models.Row, error)

	// ListRows returns a table's rows ordered ascending by id
	ListRows(ctx context.Context, tableID int64) ([]*models.Row, error)

	// RemoveRow deletes a row, its cell values, and any references whose
	// source or target is one of those cells
	RemoveRow(ctx context.Context, tableID, rowID int64) error

	// GetCell returns the cell value for (row, column), or nil when the
	// pair holds no value
	GetCell(ctx context.Context, rowID, columnID int64) (*models.CellValue, error)

	// SetCell inserts or replaces the single cell value for (row, column)
	SetCell(ctx context.Context, rowID, columnID int64, value *string) (*models.CellValue, error)

	// ScanTable returns every cell value of a table in one pass, ordered
	// by (row id asc, column order index asc)
	ScanTable(ctx context.Context, tableID int64) ([]*models.CellValue, error)

	// AddReference inserts a directed reference between two existing cells.
	// Self-references and cycles are permitted.
	AddReference(ctx context.Context, sourceCellID, targetCellID int64, referenceType string) (*models.CellReference, error)

	// RemoveReference deletes a reference by id
	RemoveReference(ctx context.Context, referenceID int64) error

	// ListReferences returns every reference whose source or target is the
	// given cell
	ListReferences(ctx context.Context, cellID int64) ([]*models.CellReference, error)

	// ResolveReferences returns the cells directly referenced by the given
	// cell (single hop, outgoing edges only)
	ResolveReferences(ctx context.Context, cellID int64) ([]*models.CellValue, error)

	// Close releases backend resources
	Close()
}
