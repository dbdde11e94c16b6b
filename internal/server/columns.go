package server

import (
	"net/http"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/models"
)

// columnAction names one of the four column mutations of the wire protocol
type columnAction string

const (
	actionAddColumn      columnAction = "add_column"
	actionRemoveColumn   columnAction = "remove_column"
	actionEditColumnName columnAction = "edit_column_name"
	actionEditColumnType columnAction = "edit_column_type"
)

// columnMutationRequest is the body of PUT /tables/{tableId}/columns
type columnMutationRequest struct {
	ActionType columnAction `json:"actionType"`
	ColumnID   int64        `json:"columnId,omitempty"`
	NewName    string       `json:"newName,omitempty"`
	NewType    string       `json:"newType,omitempty"`
	Position   *int         `json:"position,omitempty"`
}

// handleColumnMutation dispatches the column action protocol. Validation
// failures never reach the engine.
func (s *Server) handleColumnMutation(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "tableId")
	if err != nil {
		respondError(w, err)
		return
	}

	var req columnMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.ErrorTypeInvalidArgument, "malformed request body"))
		return
	}

	ctx := r.Context()
	switch req.ActionType {
	case actionAddColumn:
		if req.NewName == "" || req.NewType == "" {
			respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "column name and type required"))
			return
		}
		col, err := s.engine.AddColumn(ctx, tableID, req.NewName, models.DataType(req.NewType), req.Position)
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, col)

	case actionRemoveColumn:
		if req.ColumnID == 0 {
			respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "column ID required"))
			return
		}
		if err := s.engine.RemoveColumn(ctx, tableID, req.ColumnID); err != nil {
			respondError(w, err)
			return
		}
		respondMessage(w, http.StatusOK, "Column updated successfully")

	case actionEditColumnName:
		if req.ColumnID == 0 || req.NewName == "" {
			respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "column ID and new name required"))
			return
		}
		col, err := s.engine.RenameColumn(ctx, tableID, req.ColumnID, req.NewName)
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, col)

	case actionEditColumnType:
		if req.ColumnID == 0 || req.NewType == "" {
			respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "column ID and new type required"))
			return
		}
		col, err := s.engine.RetypeColumn(ctx, tableID, req.ColumnID, models.DataType(req.NewType))
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, col)

	default:
		respondError(w, errors.Newf(errors.ErrorTypeInvalidArgument, "invalid action type %q", req.ActionType))
	}
}

// handleListColumns returns a table's columns in display order
func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "tableId")
	if err != nil {
		respondError(w, err)
		return
	}

	cols, err := s.engine.ListColumns(r.Context(), tableID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, cols)
}
