package server

import (
	"net/http"
	"strconv"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/json"
	"github.com/gridbase/gridbase/pkg/models"
)

type addReferenceRequest struct {
	SourceCellID  int64  `json:"sourceCellId"`
	TargetCellID  int64  `json:"targetCellId"`
	ReferenceType string `json:"referenceType,omitempty"`
}

// handleAddReference links two cells. The reference type defaults to
// "lookup" when omitted.
func (s *Server) handleAddReference(w http.ResponseWriter, r *http.Request) {
	var req addReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.ErrorTypeInvalidArgument, "malformed request body"))
		return
	}
	if req.SourceCellID == 0 || req.TargetCellID == 0 {
		respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "source and target cell IDs required"))
		return
	}
	if req.ReferenceType == "" {
		req.ReferenceType = "lookup"
	}

	ref, err := s.engine.AddReference(r.Context(), req.SourceCellID, req.TargetCellID, req.ReferenceType)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, ref)
}

// handleRemoveReference deletes a reference by id
func (s *Server) handleRemoveReference(w http.ResponseWriter, r *http.Request) {
	refID, err := pathID(r, "referenceId")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := s.engine.RemoveReference(r.Context(), refID); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Reference deleted successfully")
}

// referencesResponse carries both the edges touching a cell and the cells
// reachable from it
type referencesResponse struct {
	References []*models.CellReference `json:"references"`
	Resolved   []*models.CellValue     `json:"resolved"`
}

// handleListReferences returns the references touching a cell and resolves
// its outgoing edges. With depth > 1 the resolution walks the graph
// transitively; cycles terminate through the visited set.
func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	cellID, err := strconv.ParseInt(r.URL.Query().Get("cellId"), 10, 64)
	if err != nil {
		respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "invalid cell ID"))
		return
	}

	depth := 1
	if raw := r.URL.Query().Get("depth"); raw != "" {
		depth, err = strconv.Atoi(raw)
		if err != nil || depth < 1 {
			respondError(w, errors.New(errors.ErrorTypeInvalidArgument, "depth must be a positive integer"))
			return
		}
	}

	refs, err := s.engine.ListReferences(r.Context(), cellID)
	if err != nil {
		respondError(w, err)
		return
	}

	var resolved []*models.CellValue
	if depth == 1 {
		resolved, err = s.engine.Resolve(r.Context(), cellID)
	} else {
		resolved, err = s.engine.ResolveChain(r.Context(), cellID, depth)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, referencesResponse{References: refs, Resolved: resolved})
}
