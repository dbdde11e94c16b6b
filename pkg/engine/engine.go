// Package engine is the core of the dynamic tabular data engine. It
// coordinates schema mutations, cell writes, and reads over a storage.Store:
// operations on the same table are serialized through per-table locks so a
// reader never observes a partially renumbered column set, while operations
// on different tables run concurrently. The engine also owns the pivot
// projection that turns sparse EAV cell values into row-major records.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gridbase/gridbase/pkg/codec"
	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/metrics"
	"github.com/gridbase/gridbase/pkg/models"
	"github.com/gridbase/gridbase/pkg/observability"
	"github.com/gridbase/gridbase/pkg/storage"
)

// Options configures the engine
type Options struct {
	// MutationWait bounds how long an operation waits for a busy table
	// before failing with a retryable conflict
	MutationWait time.Duration
}

// Engine coordinates all table operations over a storage backend
type Engine struct {
	store  storage.Store
	locks  *lockManager
	logger *zap.Logger
}

// ProjectedRow is one row of the pivot projection: a row id plus a value for
// every declared column of the table. Absent cells carry an explicit empty
// marker and malformed cells carry the raw text flagged invalid, so sparse
// or partially corrupt rows still render full width.
type ProjectedRow struct {
	RowID int64                   `json:"rowId"`
	Cells map[int64]codec.Decoded `json:"cells"`
}

// New creates an engine over the given store
func New(store storage.Store, opts Options, logger *zap.Logger) *Engine {
	wait := opts.MutationWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Engine{
		store:  store,
		locks:  newLockManager(wait),
		logger: logger,
	}
}

// CreateTable creates a table owned by a project
func (e *Engine) CreateTable(ctx context.Context, projectID int64, name string) (t *models.Table, err error) {
	defer e.observe("create_table", &err)()

	t, err = e.store.CreateTable(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	metrics.TablesDefined.Inc()
	return t, nil
}

// GetTable returns a table by id
func (e *Engine) GetTable(ctx context.Context, tableID int64) (*models.Table, error) {
	return e.store.GetTable(ctx, tableID)
}

// ListTables returns the tables of a project
func (e *Engine) ListTables(ctx context.Context, projectID int64) ([]*models.Table, error) {
	return e.store.ListTables(ctx, projectID)
}

// DeleteTable deletes a table and everything it owns
func (e *Engine) DeleteTable(ctx context.Context, tableID int64) (err error) {
	defer e.observe("delete_table", &err)()

	unlock, err := e.lock(ctx, "delete_table", tableID)
	if err != nil {
		return err
	}
	defer unlock()

	if err = e.store.DeleteTable(ctx, tableID); err != nil {
		return err
	}
	metrics.TablesDefined.Dec()
	return nil
}

// AddColumn adds a column to a table. With a nil position the column is
// appended; otherwise trailing columns shift right so indices stay dense.
func (e *Engine) AddColumn(ctx context.Context, tableID int64, name string, dataType models.DataType, position *int) (col *models.Column, err error) {
	defer e.observe("add_column", &err)()

	ctx, span := observability.StartSpan(ctx, "engine.AddColumn",
		attribute.Int64("table_id", tableID),
		attribute.String("data_type", string(dataType)))
	defer func() { observability.EndSpan(span, err) }()

	unlock, err := e.lock(ctx, "add_column", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.AddColumn(ctx, tableID, name, dataType, position)
}

// RemoveColumn removes a column, cascading its cell values and any
// references touching them, and renumbers the remaining columns
func (e *Engine) RemoveColumn(ctx context.Context, tableID, columnID int64) (err error) {
	defer e.observe("remove_column", &err)()

	ctx, span := observability.StartSpan(ctx, "engine.RemoveColumn",
		attribute.Int64("table_id", tableID),
		attribute.Int64("column_id", columnID))
	defer func() { observability.EndSpan(span, err) }()

	unlock, err := e.lock(ctx, "remove_column", tableID)
	if err != nil {
		return err
	}
	defer unlock()

	return e.store.RemoveColumn(ctx, tableID, columnID)
}

// RenameColumn updates a column's name
func (e *Engine) RenameColumn(ctx context.Context, tableID, columnID int64, newName string) (col *models.Column, err error) {
	defer e.observe("rename_column", &err)()

	unlock, err := e.lock(ctx, "rename_column", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.RenameColumn(ctx, tableID, columnID, newName)
}

// RetypeColumn changes a column's declared data type. Stored values are not
// rewritten; cells that no longer parse surface as invalid at read time.
func (e *Engine) RetypeColumn(ctx context.Context, tableID, columnID int64, newType models.DataType) (col *models.Column, err error) {
	defer e.observe("retype_column", &err)()

	unlock, err := e.lock(ctx, "retype_column", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.RetypeColumn(ctx, tableID, columnID, newType)
}

// ListColumns returns a table's columns ordered by display position
func (e *Engine) ListColumns(ctx context.Context, tableID int64) ([]*models.Column, error) {
	unlock, err := e.rlock(ctx, "list_columns", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.ListColumns(ctx, tableID)
}

// AddRow appends a row to a table
func (e *Engine) AddRow(ctx context.Context, tableID int64) (row *models.Row, err error) {
	defer e.observe("add_row", &err)()

	unlock, err := e.lock(ctx, "add_row", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.AddRow(ctx, tableID)
}

// GetRow returns a row by id
func (e *Engine) GetRow(ctx context.Context, rowID int64) (*models.Row, error) {
	return e.store.GetRow(ctx, rowID)
}

// RemoveRow deletes a row, its cell values, and any reference whose source
// or target was one of those cells
func (e *Engine) RemoveRow(ctx context.Context, tableID, rowID int64) (err error) {
	defer e.observe("remove_row", &err)()

	unlock, err := e.lock(ctx, "remove_row", tableID)
	if err != nil {
		return err
	}
	defer unlock()

	return e.store.RemoveRow(ctx, tableID, rowID)
}

// GetCell returns the stored cell value for (row, column), or nil when the
// pair holds no value
func (e *Engine) GetCell(ctx context.Context, rowID, columnID int64) (*models.CellValue, error) {
	row, err := e.store.GetRow(ctx, rowID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.rlock(ctx, "get_cell", row.TableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.GetCell(ctx, rowID, columnID)
}

// SetCell inserts or replaces the cell value for (row, column). The text is
// stored as given; it is interpreted against the column's data type at read
// time, never at write time.
func (e *Engine) SetCell(ctx context.Context, rowID, columnID int64, value *string) (cell *models.CellValue, err error) {
	defer e.observe("set_cell", &err)()

	row, err := e.store.GetRow(ctx, rowID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, "set_cell", row.TableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.store.SetCell(ctx, rowID, columnID, value)
}

// TableCells returns the structural EAV read of a table: one triple per
// stored cell, ordered by (row id, column order index). Values are raw text;
// pivoting and decoding are the caller's responsibility.
func (e *Engine) TableCells(ctx context.Context, tableID int64) (out []*models.EAVTriple, err error) {
	defer e.observe("table_cells", &err)()

	unlock, err := e.rlock(ctx, "table_cells", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cols, err := e.store.ListColumns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Column, len(cols))
	for _, col := range cols {
		byID[col.ID] = col
	}

	cells, err := e.store.ScanTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	out = make([]*models.EAVTriple, 0, len(cells))
	for _, cell := range cells {
		col, ok := byID[cell.ColumnID]
		if !ok {
			continue
		}
		out = append(out, &models.EAVTriple{
			RowID:      cell.RowID,
			ColumnName: col.Name,
			CellValue:  cell.Value,
			DataType:   col.DataType,
		})
	}
	return out, nil
}

// ProjectRows returns the pivot projection of a table: rows in creation
// order, each carrying a decoded value for every declared column. A cell
// whose text no longer matches its column's type is returned as invalid
// with the raw text; an absent cell is an explicit empty marker. One
// malformed cell never hides the rest of the table.
func (e *Engine) ProjectRows(ctx context.Context, tableID int64) (out []*ProjectedRow, err error) {
	defer e.observe("project_rows", &err)()

	ctx, span := observability.StartSpan(ctx, "engine.ProjectRows",
		attribute.Int64("table_id", tableID))
	defer func() { observability.EndSpan(span, err) }()

	unlock, err := e.rlock(ctx, "project_rows", tableID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cols, err := e.store.ListColumns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.ListRows(ctx, tableID)
	if err != nil {
		return nil, err
	}
	cells, err := e.store.ScanTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	byColumn := make(map[int64]*models.Column, len(cols))
	for _, col := range cols {
		byColumn[col.ID] = col
	}

	// Fold the one-pass scan into row-keyed records
	values := make(map[int64]map[int64]codec.Decoded, len(rows))
	for _, cell := range cells {
		col, ok := byColumn[cell.ColumnID]
		if !ok {
			continue
		}
		if values[cell.RowID] == nil {
			values[cell.RowID] = make(map[int64]codec.Decoded, len(cols))
		}
		values[cell.RowID][col.ID] = codec.DecodeCell(cell.Value, col.DataType)
	}

	out = make([]*ProjectedRow, 0, len(rows))
	for _, row := range rows {
		pr := &ProjectedRow{
			RowID: row.ID,
			Cells: make(map[int64]codec.Decoded, len(cols)),
		}
		for _, col := range cols {
			if v, ok := values[row.ID][col.ID]; ok {
				pr.Cells[col.ID] = v
			} else {
				pr.Cells[col.ID] = codec.Empty()
			}
		}
		out = append(out, pr)
	}
	return out, nil
}

// AddReference inserts a directed reference between two existing cells.
// Self-references and cycles are permitted; the UI, not the store, decides
// how to surface them.
func (e *Engine) AddReference(ctx context.Context, sourceCellID, targetCellID int64, referenceType string) (ref *models.CellReference, err error) {
	defer e.observe("add_reference", &err)()
	return e.store.AddReference(ctx, sourceCellID, targetCellID, referenceType)
}

// RemoveReference deletes a reference by id
func (e *Engine) RemoveReference(ctx context.Context, referenceID int64) (err error) {
	defer e.observe("remove_reference", &err)()
	return e.store.RemoveReference(ctx, referenceID)
}

// ListReferences returns every reference touching the given cell
func (e *Engine) ListReferences(ctx context.Context, cellID int64) ([]*models.CellReference, error) {
	return e.store.ListReferences(ctx, cellID)
}

// Resolve returns the set of cells directly referenced by the given cell
// (single hop)
func (e *Engine) Resolve(ctx context.Context, cellID int64) (cells []*models.CellValue, err error) {
	defer e.observe("resolve", &err)()
	return e.store.ResolveReferences(ctx, cellID)
}

// ResolveChain walks outgoing references transitively up to maxDepth hops.
// The persisted graph may contain cycles, so traversal tracks visited cells
// to guarantee termination.
func (e *Engine) ResolveChain(ctx context.Context, cellID int64, maxDepth int) (cells []*models.CellValue, err error) {
	defer e.observe("resolve_chain", &err)()

	if maxDepth < 1 {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "maxDepth must be at least 1")
	}

	visited := map[int64]bool{cellID: true}
	frontier := []int64{cellID}
	cells = make([]*models.CellValue, 0)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next := make([]int64, 0)
		for _, id := range frontier {
			targets, err := e.store.ResolveReferences(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, cell := range targets {
				if visited[cell.ID] {
					continue
				}
				visited[cell.ID] = true
				cells = append(cells, cell)
				next = append(next, cell.ID)
			}
		}
		frontier = next
	}
	return cells, nil
}

// lock takes a table's write lock, recording a metric on timeout
func (e *Engine) lock(ctx context.Context, operation string, tableID int64) (func(), error) {
	unlock, err := e.locks.acquire(ctx, tableID)
	if err != nil {
		metrics.MutationWaits.WithLabelValues(operation).Inc()
		e.logger.Warn("timed out waiting for table",
			zap.String("operation", operation),
			zap.Int64("table_id", tableID))
		return nil, err
	}
	return unlock, nil
}

// rlock takes a table's read lock
func (e *Engine) rlock(ctx context.Context, operation string, tableID int64) (func(), error) {
	unlock, err := e.locks.acquireShared(ctx, tableID)
	if err != nil {
		metrics.MutationWaits.WithLabelValues(operation).Inc()
		return nil, err
	}
	return unlock, nil
}

// observe times an operation and records its outcome when the returned
// function runs. Conflicts are counted as their own status so retryable
// contention is distinguishable from real failures.
func (e *Engine) observe(operation string, errp *error) func() {
	timer := metrics.NewTimer()
	return func() {
		status := "success"
		switch {
		case *errp == nil:
		case errors.IsType(*errp, errors.ErrorTypeConflict):
			status = "conflict"
		default:
			status = "failure"
		}
		metrics.EngineOperations.WithLabelValues(operation, status).Inc()
		if *errp == nil {
			metrics.OperationLatency.WithLabelValues(operation).Observe(timer.Stop().Seconds())
		}
	}
}
