package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/pkg/config"
	"github.com/gridbase/gridbase/pkg/engine"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/models"
	"github.com/gridbase/gridbase/pkg/storage/memory"
	"github.com/gridbase/gridbase/pkg/testutil"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	cfg := config.Default()
	cfg.Auth.Tokens = map[string]int64{testToken: 7}
	cfg.Observability.EnableMetrics = false

	eng := engine.New(memory.NewStore(testutil.Logger(t)), engine.Options{}, testutil.Logger(t))
	srv := New(eng, NewStaticResolver(cfg.Auth.Tokens), cfg, testutil.Logger(t))
	return srv, eng
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// seedTable builds a table with one text column and one row directly
// through the engine
func seedTable(t *testing.T, eng *engine.Engine) (*models.Table, *models.Column, *models.Row) {
	ctx := context.Background()
	table, err := eng.CreateTable(ctx, 1, "Customers")
	require.NoError(t, err)
	col, err := eng.AddColumn(ctx, table.ID, "Name", models.DataTypeText, nil)
	require.NoError(t, err)
	row, err := eng.AddRow(ctx, table.ID)
	require.NoError(t, err)
	return table, col, row
}

func TestAuthGateRejectsBeforeMutation(t *testing.T) {
	srv, eng := newTestServer(t)
	table, _, _ := seedTable(t, eng)

	body := map[string]interface{}{"actionType": "add_column", "newName": "Email", "newType": "text"}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	// No Authorization header at all
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/tables/%d/columns", table.ID), &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token
	req = httptest.NewRequest(http.MethodPut, fmt.Sprintf("/tables/%d/columns", table.ID), &buf)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The rejected mutations must not have landed
	cols, err := eng.ListColumns(context.Background(), table.ID)
	require.NoError(t, err)
	assert.Len(t, cols, 1)
}

func TestColumnActionProtocol(t *testing.T) {
	srv, eng := newTestServer(t)
	table, col, _ := seedTable(t, eng)
	path := fmt.Sprintf("/tables/%d/columns", table.ID)

	// Unknown action
	rec := doJSON(t, srv, http.MethodPut, path, map[string]interface{}{"actionType": "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)

	// add_column without a type
	rec = doJSON(t, srv, http.MethodPut, path, map[string]interface{}{"actionType": "add_column", "newName": "Email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// add_column with a bogus type never reaches storage
	rec = doJSON(t, srv, http.MethodPut, path, map[string]interface{}{
		"actionType": "add_column", "newName": "Email", "newType": "blob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid add_column
	rec = doJSON(t, srv, http.MethodPut, path, map[string]interface{}{
		"actionType": "add_column", "newName": "Email", "newType": "text"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)

	// edit_column_name without columnId
	rec = doJSON(t, srv, http.MethodPut, path, map[string]interface{}{
		"actionType": "edit_column_name", "newName": "FullName"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid rename
	rec = doJSON(t, srv, http.MethodPut, path, map[string]interface{}{
		"actionType": "edit_column_name", "columnId": col.ID, "newName": "FullName"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Valid retype
	rec = doJSON(t, srv, http.MethodPut, path, map[string]interface{}{
		"actionType": "edit_column_type", "columnId": col.ID, "newType": "number"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// remove_column on an unknown table is a 404
	rec = doJSON(t, srv, http.MethodPut, "/tables/999/columns", map[string]interface{}{
		"actionType": "remove_column", "columnId": col.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cols, err := eng.ListColumns(context.Background(), table.ID)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "FullName", cols[0].Name)
	assert.Equal(t, models.DataTypeNumber, cols[0].DataType)
}

func TestGetTableDataShape(t *testing.T) {
	srv, eng := newTestServer(t)
	table, col, row := seedTable(t, eng)
	_, err := eng.SetCell(context.Background(), row.ID, col.ID, testutil.Ptr("John Doe"))
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/tables?tableId=%d", table.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Cells   []struct {
			RowID      int64   `json:"rowId"`
			ColumnName string  `json:"columnName"`
			CellValue  *string `json:"cellValue"`
			DataType   string  `json:"dataType"`
		} `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Cells, 1)
	assert.Equal(t, row.ID, resp.Cells[0].RowID)
	assert.Equal(t, "Name", resp.Cells[0].ColumnName)
	require.NotNil(t, resp.Cells[0].CellValue)
	assert.Equal(t, "John Doe", *resp.Cells[0].CellValue)
	assert.Equal(t, "text", resp.Cells[0].DataType)

	// Malformed tableId
	rec = doJSON(t, srv, http.MethodGet, "/tables?tableId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown table
	rec = doJSON(t, srv, http.MethodGet, "/tables?tableId=999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/tables", map[string]interface{}{"projectId": 1, "name": "Orders"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data models.Table `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Orders", created.Data.Name)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/tables/%d", created.Data.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/tables/%d", created.Data.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Nameless create
	rec = doJSON(t, srv, http.MethodPost, "/tables", map[string]interface{}{"projectId": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRowAndCellEndpoints(t *testing.T) {
	srv, eng := newTestServer(t)
	table, col, _ := seedTable(t, eng)

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/tables/%d/rows", table.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data models.Row `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/tables/%d/cells", table.ID), map[string]interface{}{
		"rowId": created.Data.ID, "columnId": col.ID, "value": "Jane Smith"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The cell write must reject a row that belongs to another table
	other, err := eng.CreateTable(context.Background(), 1, "other")
	require.NoError(t, err)
	rec = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/tables/%d/cells", other.ID), map[string]interface{}{
		"rowId": created.Data.ID, "columnId": col.ID, "value": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/tables/%d/rows", table.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/tables/%d/rows/%d", table.ID, created.Data.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReferenceEndpoints(t *testing.T) {
	srv, eng := newTestServer(t)
	_, col, row := seedTable(t, eng)
	ctx := context.Background()

	c1, err := eng.SetCell(ctx, row.ID, col.ID, testutil.Ptr("John Doe"))
	require.NoError(t, err)
	row2, err := eng.AddRow(ctx, col.TableID)
	require.NoError(t, err)
	c2, err := eng.SetCell(ctx, row2.ID, col.ID, testutil.Ptr("Jane Smith"))
	require.NoError(t, err)

	// referenceType defaults to lookup
	rec := doJSON(t, srv, http.MethodPost, "/references", map[string]interface{}{
		"sourceCellId": c1.ID, "targetCellId": c2.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data models.CellReference `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "lookup", created.Data.ReferenceType)

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/references?cellId=%d", c1.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data referencesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.References, 1)
	require.Len(t, resp.Data.Resolved, 1)
	assert.Equal(t, c2.ID, resp.Data.Resolved[0].ID)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/references/%d", created.Data.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing endpoints are rejected
	rec = doJSON(t, srv, http.MethodPost, "/references", map[string]interface{}{"sourceCellId": c1.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
