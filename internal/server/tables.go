package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/logger"
	"github.com/gridbase/gridbase/pkg/models"
)

type createTableRequest struct {
	ProjectID int64  `json:"projectId"`
	Name      string `json:"name"`
}

// handleCreateTable creates a table for a project
func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.ErrorTypeInvalidArgument, "malformed request body"))
		return
	}
	if req.Name == "" {
		respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "table name required"))
		return
	}

	table, err := s.engine.CreateTable(r.Context(), req.ProjectID, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, table)
}

// cellsEnvelope is the wire shape of the raw table read. The triples carry
// stored text; pivoting and decoding are the caller's job.
type cellsEnvelope struct {
	Success bool                `json:"success"`
	Cells   []*models.EAVTriple `json:"cells"`
}

// handleGetTableData returns every stored cell of a table as EAV triples
func (s *Server) handleGetTableData(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tableId")
	tableID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "invalid table ID"))
		return
	}

	cells, err := s.engine.TableCells(r.Context(), tableID)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.EncodeTo(w, cellsEnvelope{Success: true, Cells: cells}); err != nil {
		logger.Error("failed to encode table data", zap.Error(err))
	}
}

// handleDeleteTable deletes a table and everything it owns
func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "tableId")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.engine.DeleteTable(r.Context(), tableID); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Table deleted successfully")
}
