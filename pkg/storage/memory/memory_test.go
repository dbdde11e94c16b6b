package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/models"
	"github.com/gridbase/gridbase/pkg/testutil"
)

func newTestStore(t *testing.T) *Store {
	return NewStore(testutil.Logger(t))
}

func TestCreateAndGetTable(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "Customers")
	require.NoError(t, err)
	assert.Equal(t, "Customers", table.Name)
	assert.Equal(t, int64(1), table.ProjectID)

	got, err := s.GetTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, table.ID, got.ID)

	_, err = s.GetTable(ctx, 999)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = s.CreateTable(ctx, 1, "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func orderIndices(t *testing.T, s *Store, tableID int64) []int {
	t.Helper()
	cols, err := s.ListColumns(testutil.Context(t), tableID)
	require.NoError(t, err)
	out := make([]int, len(cols))
	for i, col := range cols {
		out[i] = col.OrderIndex
	}
	return out
}

// Order indices must stay contiguous from zero after any sequence of column
// additions and removals.
func TestColumnOrderStaysDense(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)

	a, err := s.AddColumn(ctx, table.ID, "a", models.DataTypeText, nil)
	require.NoError(t, err)
	b, err := s.AddColumn(ctx, table.ID, "b", models.DataTypeText, nil)
	require.NoError(t, err)
	_, err = s.AddColumn(ctx, table.ID, "c", models.DataTypeText, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, orderIndices(t, s, table.ID))

	// Insert in the middle shifts trailing columns right
	mid, err := s.AddColumn(ctx, table.ID, "mid", models.DataTypeNumber, testutil.Ptr(1))
	require.NoError(t, err)
	assert.Equal(t, 1, mid.OrderIndex)
	assert.Equal(t, []int{0, 1, 2, 3}, orderIndices(t, s, table.ID))

	cols, err := s.ListColumns(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "mid", "b", "c"}, []string{cols[0].Name, cols[1].Name, cols[2].Name, cols[3].Name})

	// Removing from the middle renumbers to close the gap
	require.NoError(t, s.RemoveColumn(ctx, table.ID, mid.ID))
	assert.Equal(t, []int{0, 1, 2}, orderIndices(t, s, table.ID))

	require.NoError(t, s.RemoveColumn(ctx, table.ID, a.ID))
	assert.Equal(t, []int{0, 1}, orderIndices(t, s, table.ID))

	cols, err = s.ListColumns(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", cols[0].Name)
	assert.Equal(t, b.ID, cols[0].ID)
}

func TestAddColumnPositionBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)

	// Position n (append) is legal on a table with n columns, n+1 is not
	_, err = s.AddColumn(ctx, table.ID, "a", models.DataTypeText, testutil.Ptr(0))
	require.NoError(t, err)
	_, err = s.AddColumn(ctx, table.ID, "b", models.DataTypeText, testutil.Ptr(2))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
	_, err = s.AddColumn(ctx, table.ID, "b", models.DataTypeText, testutil.Ptr(-1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestAddColumnRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)

	_, err = s.AddColumn(ctx, table.ID, "a", models.DataType("blob"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestSetCellUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	col, err := s.AddColumn(ctx, table.ID, "name", models.DataTypeText, nil)
	require.NoError(t, err)
	row, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)

	first, err := s.SetCell(ctx, row.ID, col.ID, testutil.Ptr("alice"))
	require.NoError(t, err)

	// Writing the same pair again replaces the value in place
	second, err := s.SetCell(ctx, row.ID, col.ID, testutil.Ptr("bob"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same pair keeps the same cell identity")

	cells, err := s.ScanTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.NotNil(t, cells[0].Value)
	assert.Equal(t, "bob", *cells[0].Value)

	// Null clears the text but keeps the cell
	cleared, err := s.SetCell(ctx, row.ID, col.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cleared.ID)
	assert.Nil(t, cleared.Value)
}

func TestSetCellRejectsForeignColumn(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	t1, err := s.CreateTable(ctx, 1, "t1")
	require.NoError(t, err)
	t2, err := s.CreateTable(ctx, 1, "t2")
	require.NoError(t, err)

	colT2, err := s.AddColumn(ctx, t2.ID, "x", models.DataTypeText, nil)
	require.NoError(t, err)
	rowT1, err := s.AddRow(ctx, t1.ID)
	require.NoError(t, err)

	_, err = s.SetCell(ctx, rowT1.ID, colT2.ID, testutil.Ptr("v"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestGetCellAbsentPairIsNil(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	col, err := s.AddColumn(ctx, table.ID, "a", models.DataTypeText, nil)
	require.NoError(t, err)
	row, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)

	cell, err := s.GetCell(ctx, row.ID, col.ID)
	require.NoError(t, err)
	assert.Nil(t, cell, "absent pair is nil, not an error")

	_, err = s.GetCell(ctx, 999, col.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestRemoveColumnCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	keep, err := s.AddColumn(ctx, table.ID, "keep", models.DataTypeText, nil)
	require.NoError(t, err)
	gone, err := s.AddColumn(ctx, table.ID, "gone", models.DataTypeText, nil)
	require.NoError(t, err)
	row, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)

	keepCell, err := s.SetCell(ctx, row.ID, keep.ID, testutil.Ptr("k"))
	require.NoError(t, err)
	goneCell, err := s.SetCell(ctx, row.ID, gone.ID, testutil.Ptr("g"))
	require.NoError(t, err)

	// Reference into the doomed column's cell must disappear with it
	_, err = s.AddReference(ctx, keepCell.ID, goneCell.ID, "lookup")
	require.NoError(t, err)

	require.NoError(t, s.RemoveColumn(ctx, table.ID, gone.ID))

	cells, err := s.ScanTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, keepCell.ID, cells[0].ID)

	refs, err := s.ListReferences(ctx, keepCell.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestRemoveRowCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	col, err := s.AddColumn(ctx, table.ID, "a", models.DataTypeText, nil)
	require.NoError(t, err)

	r1, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)
	r2, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)

	c1, err := s.SetCell(ctx, r1.ID, col.ID, testutil.Ptr("one"))
	require.NoError(t, err)
	c2, err := s.SetCell(ctx, r2.ID, col.ID, testutil.Ptr("two"))
	require.NoError(t, err)

	_, err = s.AddReference(ctx, c2.ID, c1.ID, "lookup")
	require.NoError(t, err)

	require.NoError(t, s.RemoveRow(ctx, table.ID, r1.ID))

	rows, err := s.ListRows(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r2.ID, rows[0].ID)

	refs, err := s.ListReferences(ctx, c2.ID)
	require.NoError(t, err)
	assert.Empty(t, refs, "reference died with its target cell")

	// Row membership is checked against the table in the path
	err = s.RemoveRow(ctx, table.ID+1, r2.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestDeleteTableCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	other, err := s.CreateTable(ctx, 1, "other")
	require.NoError(t, err)

	col, err := s.AddColumn(ctx, table.ID, "a", models.DataTypeText, nil)
	require.NoError(t, err)
	row, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)
	cell, err := s.SetCell(ctx, row.ID, col.ID, testutil.Ptr("v"))
	require.NoError(t, err)

	otherCol, err := s.AddColumn(ctx, other.ID, "x", models.DataTypeText, nil)
	require.NoError(t, err)
	otherRow, err := s.AddRow(ctx, other.ID)
	require.NoError(t, err)
	otherCell, err := s.SetCell(ctx, otherRow.ID, otherCol.ID, testutil.Ptr("w"))
	require.NoError(t, err)

	// Cross-table reference must not survive the deletion of one endpoint
	_, err = s.AddReference(ctx, otherCell.ID, cell.ID, "lookup")
	require.NoError(t, err)

	require.NoError(t, s.DeleteTable(ctx, table.ID))

	_, err = s.GetTable(ctx, table.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = s.GetRow(ctx, row.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	refs, err := s.ListReferences(ctx, otherCell.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	// The untouched table is intact
	rows, err := s.ListRows(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestScanTableOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	c0, err := s.AddColumn(ctx, table.ID, "c0", models.DataTypeText, nil)
	require.NoError(t, err)
	c1, err := s.AddColumn(ctx, table.ID, "c1", models.DataTypeText, nil)
	require.NoError(t, err)

	r1, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)
	r2, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)

	// Write out of order; the scan must come back (row asc, index asc)
	_, err = s.SetCell(ctx, r2.ID, c1.ID, testutil.Ptr("r2c1"))
	require.NoError(t, err)
	_, err = s.SetCell(ctx, r1.ID, c1.ID, testutil.Ptr("r1c1"))
	require.NoError(t, err)
	_, err = s.SetCell(ctx, r1.ID, c0.ID, testutil.Ptr("r1c0"))
	require.NoError(t, err)

	cells, err := s.ScanTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Equal(t, "r1c0", *cells[0].Value)
	assert.Equal(t, "r1c1", *cells[1].Value)
	assert.Equal(t, "r2c1", *cells[2].Value)
}

func TestReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.Context(t)

	table, err := s.CreateTable(ctx, 1, "t")
	require.NoError(t, err)
	col, err := s.AddColumn(ctx, table.ID, "a", models.DataTypeText, nil)
	require.NoError(t, err)
	row, err := s.AddRow(ctx, table.ID)
	require.NoError(t, err)

	c1, err := s.SetCell(ctx, row.ID, col.ID, testutil.Ptr("v"))
	require.NoError(t, err)

	// Self-reference is permitted
	ref, err := s.AddReference(ctx, c1.ID, c1.ID, "lookup")
	require.NoError(t, err)
	assert.Equal(t, "lookup", ref.ReferenceType)

	resolved, err := s.ResolveReferences(ctx, c1.ID)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, c1.ID, resolved[0].ID)

	require.NoError(t, s.RemoveReference(ctx, ref.ID))
	err = s.RemoveReference(ctx, ref.ID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = s.AddReference(ctx, c1.ID, 999, "lookup")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
