// Package memory implements storage.Store with index-backed in-memory
// structures: a map from table id to its column set, and a map keyed by
// (row id, column id) holding cell values. Keying cells by the pair makes
// duplicate cell values for one pair unrepresentable, which enforces the
// at-most-one-cell-per-pair invariant structurally instead of by upsert
// convention.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/models"
)

type cellKey struct {
	rowID    int64
	columnID int64
}

// Store is an in-memory storage.Store. All state lives behind one mutex;
// compound mutations validate fully before touching any map, so a failed
// operation never leaves partial state.
type Store struct {
	mu sync.RWMutex

	tables  map[int64]*models.Table
	columns map[int64]*models.Column
	rows    map[int64]*models.Row
	cells   map[cellKey]*models.CellValue
	cellIDs map[int64]*models.CellValue
	refs    map[int64]*models.CellReference

	nextTableID  int64
	nextColumnID int64
	nextRowID    int64
	nextCellID   int64
	nextRefID    int64

	logger *zap.Logger
}

// NewStore creates an empty in-memory store
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		tables:  make(map[int64]*models.Table),
		columns: make(map[int64]*models.Column),
		rows:    make(map[int64]*models.Row),
		cells:   make(map[cellKey]*models.CellValue),
		cellIDs: make(map[int64]*models.CellValue),
		refs:    make(map[int64]*models.CellReference),
		logger:  logger,
	}
}

// CreateTable creates a table owned by a project
func (s *Store) CreateTable(_ context.Context, projectID int64, name string) (*models.Table, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "table name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTableID++
	now := time.Now()
	t := &models.Table{
		ID:        s.nextTableID,
		Name:      name,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tables[t.ID] = t

	s.logger.Info("table created",
		zap.Int64("table_id", t.ID),
		zap.Int64("project_id", projectID),
		zap.String("name", name))

	return cloneTable(t), nil
}

// GetTable returns a table by id
func (s *Store) GetTable(_ context.Context, tableID int64) (*models.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableID]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}
	return cloneTable(t), nil
}

// ListTables returns the tables of a project ordered by id
func (s *Store) ListTables(_ context.Context, projectID int64) ([]*models.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Table, 0)
	for _, t := range s.tables {
		if t.ProjectID == projectID {
			out = append(out, cloneTable(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteTable deletes a table and everything it owns
func (s *Store) DeleteTable(_ context.Context, tableID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[tableID]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}

	removed := make(map[int64]bool)
	for key, cell := range s.cells {
		row, ok := s.rows[cell.RowID]
		if !ok || row.TableID != tableID {
			continue
		}
		removed[cell.ID] = true
		delete(s.cells, key)
		delete(s.cellIDs, cell.ID)
	}
	s.dropReferencesTouching(removed)

	for id, row := range s.rows {
		if row.TableID == tableID {
			delete(s.rows, id)
		}
	}
	for id, col := range s.columns {
		if col.TableID == tableID {
			delete(s.columns, id)
		}
	}
	delete(s.tables, tableID)

	s.logger.Info("table deleted", zap.Int64("table_id", tableID))
	return nil
}

// AddColumn appends a column, or inserts it at position, keeping order
// indices dense and unique
func (s *Store) AddColumn(_ context.Context, tableID int64, name string, dataType models.DataType, position *int) (*models.Column, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "column name is required")
	}
	if !dataType.Valid() {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown data type %q", dataType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}

	siblings := s.columnsOf(tableID)
	index := len(siblings)
	if position != nil {
		if *position < 0 || *position > len(siblings) {
			return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "position %d out of range [0,%d]", *position, len(siblings))
		}
		index = *position
		for _, sib := range siblings {
			if sib.OrderIndex >= index {
				sib.OrderIndex++
				sib.UpdatedAt = time.Now()
			}
		}
	}

	s.nextColumnID++
	now := time.Now()
	col := &models.Column{
		ID:         s.nextColumnID,
		Name:       name,
		TableID:    tableID,
		DataType:   dataType,
		OrderIndex: index,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.columns[col.ID] = col

	s.logger.Info("column added",
		zap.Int64("table_id", tableID),
		zap.Int64("column_id", col.ID),
		zap.String("data_type", string(dataType)),
		zap.Int("order_index", index))

	return cloneColumn(col), nil
}

// RemoveColumn deletes a column, cascades its cells and their references,
// and renumbers trailing columns
func (s *Store) RemoveColumn(_ context.Context, tableID, columnID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.columnOf(tableID, columnID)
	if err != nil {
		return err
	}

	removed := make(map[int64]bool)
	for key, cell := range s.cells {
		if cell.ColumnID == columnID {
			removed[cell.ID] = true
			delete(s.cells, key)
			delete(s.cellIDs, cell.ID)
		}
	}
	s.dropReferencesTouching(removed)

	gone := col.OrderIndex
	delete(s.columns, columnID)
	for _, sib := range s.columnsOf(tableID) {
		if sib.OrderIndex > gone {
			sib.OrderIndex--
			sib.UpdatedAt = time.Now()
		}
	}

	s.logger.Info("column removed",
		zap.Int64("table_id", tableID),
		zap.Int64("column_id", columnID),
		zap.Int("cells_cascaded", len(removed)))

	return nil
}

// RenameColumn updates a column's name
func (s *Store) RenameColumn(_ context.Context, tableID, columnID int64, newName string) (*models.Column, error) {
	if newName == "" {
		return nil, errors.New(errors.ErrorTypeInvalidArgument, "column name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.columnOf(tableID, columnID)
	if err != nil {
		return nil, err
	}
	col.Name = newName
	col.UpdatedAt = time.Now()
	return cloneColumn(col), nil
}

// RetypeColumn updates a column's data type. Stored values are untouched;
// text that no longer matches the type surfaces as invalid at read time.
func (s *Store) RetypeColumn(_ context.Context, tableID, columnID int64, newType models.DataType) (*models.Column, error) {
	if !newType.Valid() {
		return nil, errors.Newf(errors.ErrorTypeInvalidArgument, "unknown data type %q", newType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.columnOf(tableID, columnID)
	if err != nil {
		return nil, err
	}
	col.DataType = newType
	col.UpdatedAt = time.Now()
	return cloneColumn(col), nil
}

// ListColumns returns a table's columns ordered ascending by OrderIndex
func (s *Store) ListColumns(_ context.Context, tableID int64) ([]*models.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}

	cols := s.columnsOf(tableID)
	out := make([]*models.Column, len(cols))
	for i, c := range cols {
		out[i] = cloneColumn(c)
	}
	return out, nil
}

// AddRow appends a row to a table
func (s *Store) AddRow(_ context.Context, tableID int64) (*models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}

	s.nextRowID++
	row := &models.Row{
		ID:        s.nextRowID,
		TableID:   tableID,
		CreatedAt: time.Now(),
	}
	s.rows[row.ID] = row
	return cloneRow(row), nil
}

// GetRow returns a row by id
func (s *Store) GetRow(_ context.Context, rowID int64) (*models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[rowID]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "row %d not found", rowID)
	}
	return cloneRow(row), nil
}

// ListRows returns a table's rows ordered ascending by id
func (s *Store) ListRows(_ context.Context, tableID int64) ([]*models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}

	out := make([]*models.Row, 0)
	for _, row := range s.rows {
		if row.TableID == tableID {
			out = append(out, cloneRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RemoveRow deletes a row, its cells, and references touching those cells
func (s *Store) RemoveRow(_ context.Context, tableID, rowID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[rowID]
	if !ok || row.TableID != tableID {
		return errors.Newf(errors.ErrorTypeNotFound, "row %d not found in table %d", rowID, tableID)
	}

	removed := make(map[int64]bool)
	for key, cell := range s.cells {
		if cell.RowID == rowID {
			removed[cell.ID] = true
			delete(s.cells, key)
			delete(s.cellIDs, cell.ID)
		}
	}
	s.dropReferencesTouching(removed)
	delete(s.rows, rowID)

	s.logger.Info("row removed",
		zap.Int64("table_id", tableID),
		zap.Int64("row_id", rowID),
		zap.Int("cells_cascaded", len(removed)))

	return nil
}

// GetCell returns the cell value for (row, column), or nil when absent
func (s *Store) GetCell(_ context.Context, rowID, columnID int64) (*models.CellValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rows[rowID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "row %d not found", rowID)
	}
	if _, ok := s.columns[columnID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "column %d not found", columnID)
	}

	cell, ok := s.cells[cellKey{rowID, columnID}]
	if !ok {
		return nil, nil
	}
	return cloneCell(cell), nil
}

// SetCell inserts or replaces the single cell value for (row, column)
func (s *Store) SetCell(_ context.Context, rowID, columnID int64, value *string) (*models.CellValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[rowID]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "row %d not found", rowID)
	}
	col, ok := s.columns[columnID]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "column %d not found", columnID)
	}
	if row.TableID != col.TableID {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "column %d does not belong to table %d", columnID, row.TableID)
	}

	key := cellKey{rowID, columnID}
	if cell, ok := s.cells[key]; ok {
		cell.Value = cloneValue(value)
		return cloneCell(cell), nil
	}

	s.nextCellID++
	cell := &models.CellValue{
		ID:       s.nextCellID,
		RowID:    rowID,
		ColumnID: columnID,
		Value:    cloneValue(value),
	}
	s.cells[key] = cell
	s.cellIDs[cell.ID] = cell
	return cloneCell(cell), nil
}

// ScanTable returns every cell of a table ordered by (row id, order index)
func (s *Store) ScanTable(_ context.Context, tableID int64) ([]*models.CellValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}

	rowIDs := make([]int64, 0)
	for _, row := range s.rows {
		if row.TableID == tableID {
			rowIDs = append(rowIDs, row.ID)
		}
	}
	sort.Slice(rowIDs, func(i, j int) bool { return rowIDs[i] < rowIDs[j] })

	cols := s.columnsOf(tableID)

	out := make([]*models.CellValue, 0, len(rowIDs)*len(cols))
	for _, rowID := range rowIDs {
		for _, col := range cols {
			if cell, ok := s.cells[cellKey{rowID, col.ID}]; ok {
				out = append(out, cloneCell(cell))
			}
		}
	}
	return out, nil
}

// AddReference inserts a directed reference between two existing cells
func (s *Store) AddReference(_ context.Context, sourceCellID, targetCellID int64, referenceType string) (*models.CellReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cellIDs[sourceCellID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "source cell %d not found", sourceCellID)
	}
	if _, ok := s.cellIDs[targetCellID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "target cell %d not found", targetCellID)
	}

	s.nextRefID++
	ref := &models.CellReference{
		ID:            s.nextRefID,
		SourceCellID:  sourceCellID,
		TargetCellID:  targetCellID,
		ReferenceType: referenceType,
		CreatedAt:     time.Now(),
	}
	s.refs[ref.ID] = ref
	return cloneRef(ref), nil
}

// RemoveReference deletes a reference by id
func (s *Store) RemoveReference(_ context.Context, referenceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refs[referenceID]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "reference %d not found", referenceID)
	}
	delete(s.refs, referenceID)
	return nil
}

// ListReferences returns every reference touching the given cell
func (s *Store) ListReferences(_ context.Context, cellID int64) ([]*models.CellReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.cellIDs[cellID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "cell %d not found", cellID)
	}

	out := make([]*models.CellReference, 0)
	for _, ref := range s.refs {
		if ref.SourceCellID == cellID || ref.TargetCellID == cellID {
			out = append(out, cloneRef(ref))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ResolveReferences returns the cells directly referenced by the given cell
func (s *Store) ResolveReferences(_ context.Context, cellID int64) ([]*models.CellValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.cellIDs[cellID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "cell %d not found", cellID)
	}

	seen := make(map[int64]bool)
	out := make([]*models.CellValue, 0)
	for _, ref := range s.refs {
		if ref.SourceCellID != cellID || seen[ref.TargetCellID] {
			continue
		}
		seen[ref.TargetCellID] = true
		if cell, ok := s.cellIDs[ref.TargetCellID]; ok {
			out = append(out, cloneCell(cell))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() {}

// columnsOf returns the live column structs of a table sorted by OrderIndex.
// Callers must hold the mutex.
func (s *Store) columnsOf(tableID int64) []*models.Column {
	cols := make([]*models.Column, 0)
	for _, col := range s.columns {
		if col.TableID == tableID {
			cols = append(cols, col)
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].OrderIndex < cols[j].OrderIndex })
	return cols
}

// columnOf returns the live column struct after verifying table membership.
// Callers must hold the mutex.
func (s *Store) columnOf(tableID, columnID int64) (*models.Column, error) {
	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %d not found", tableID)
	}
	col, ok := s.columns[columnID]
	if !ok || col.TableID != tableID {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "column %d not found in table %d", columnID, tableID)
	}
	return col, nil
}

// dropReferencesTouching deletes every reference with an endpoint in the
// removed cell set. Callers must hold the mutex.
func (s *Store) dropReferencesTouching(removed map[int64]bool) {
	if len(removed) == 0 {
		return
	}
	for id, ref := range s.refs {
		if removed[ref.SourceCellID] || removed[ref.TargetCellID] {
			delete(s.refs, id)
		}
	}
}

func cloneTable(t *models.Table) *models.Table {
	c := *t
	return &c
}

func cloneColumn(col *models.Column) *models.Column {
	c := *col
	return &c
}

func cloneRow(r *models.Row) *models.Row {
	c := *r
	return &c
}

func cloneCell(cell *models.CellValue) *models.CellValue {
	c := *cell
	c.Value = cloneValue(cell.Value)
	return &c
}

func cloneRef(ref *models.CellReference) *models.CellReference {
	c := *ref
	return &c
}

func cloneValue(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
