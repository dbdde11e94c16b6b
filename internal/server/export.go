package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/gridbase/gridbase/pkg/export"
	"github.com/gridbase/gridbase/pkg/logger"
)

// handleExport streams a table as JSON or CSV, optionally compressed.
// Format and compression errors surface as 400 before any byte is written;
// engine errors after the table lookup surface the same way because the
// exporter loads everything it needs before streaming begins.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "tableId")
	if err != nil {
		respondError(w, err)
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, err)
		return
	}
	compression, err := export.ParseCompression(r.URL.Query().Get("compression"))
	if err != nil {
		respondError(w, err)
		return
	}

	// Validate the table before committing to a streamed response
	if _, err := s.engine.GetTable(r.Context(), tableID); err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("table-%d.%s", tableID, format)))
	if enc := compression.ContentEncoding(); enc != "" {
		w.Header().Set("Content-Encoding", enc)
	}

	if err := s.exporter.Export(r.Context(), tableID, format, compression, w); err != nil {
		// Headers are gone; all that is left is to log
		logger.WithContext(r.Context()).Error("export stream failed",
			zap.Int64("table_id", tableID),
			zap.Error(err))
	}
}
