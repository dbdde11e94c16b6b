// Package models defines the entities of the dynamic tabular data engine:
// user-defined tables and columns, rows, sparse EAV cell values, and the
// directed reference edges between cells.
package models

import "time"

// DataType is the declared type of a column. Cell values are stored as text
// and reinterpreted against the owning column's DataType at read time, so a
// column may be retyped without rewriting existing values.
type DataType string

const (
	// DataTypeText is free-form text
	DataTypeText DataType = "text"
	// DataTypeNumber is an IEEE-754 double
	DataTypeNumber DataType = "number"
	// DataTypeBoolean is true/false
	DataTypeBoolean DataType = "boolean"
	// DataTypeDate is an ISO-8601 calendar date (YYYY-MM-DD)
	DataTypeDate DataType = "date"
)

// Valid reports whether t is one of the four supported data types
func (t DataType) Valid() bool {
	switch t {
	case DataTypeText, DataTypeNumber, DataTypeBoolean, DataTypeDate:
		return true
	}
	return false
}

// Table is a user-defined table inside a project
type Table struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ProjectID int64     `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Column is a dynamically typed, ordered column of a table. OrderIndex is
// the dense zero-based display rank; the set of indices for a table is a
// contiguous permutation of 0..n-1 after every mutation.
type Column struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	TableID    int64     `json:"tableId"`
	DataType   DataType  `json:"dataType"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Row is a row of a table. Ascending ID is creation order and the default
// display order.
type Row struct {
	ID        int64     `json:"id"`
	TableID   int64     `json:"tableId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CellValue is one sparse EAV fact: the textual value of (row, column).
// At most one CellValue exists per (RowID, ColumnID) pair. A nil Value is
// an explicitly stored empty cell.
type CellValue struct {
	ID       int64   `json:"id"`
	RowID    int64   `json:"rowId"`
	ColumnID int64   `json:"columnId"`
	Value    *string `json:"value"`
}

// CellReference is a directed edge between two cells. Cycles and
// self-references are permitted in the persisted graph.
type CellReference struct {
	ID            int64     `json:"id"`
	SourceCellID  int64     `json:"sourceCellId"`
	TargetCellID  int64     `json:"targetCellId"`
	ReferenceType string    `json:"referenceType"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EAVTriple is the wire shape of one cell in the structural (unpivoted)
// read: the caller is responsible for pivoting.
type EAVTriple struct {
	RowID      int64    `json:"rowId"`
	ColumnName string   `json:"columnName"`
	CellValue  *string  `json:"cellValue"`
	DataType   DataType `json:"dataType"`
}
