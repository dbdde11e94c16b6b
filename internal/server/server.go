// Package server exposes the tabular data engine over HTTP. Routing uses
// the standard mux with method and wildcard patterns; every route runs
// behind identity resolution and an observability wrapper that logs, meters,
// and traces the request.
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gridbase/gridbase/pkg/config"
	"github.com/gridbase/gridbase/pkg/engine"
	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/export"
)

// Server is the HTTP boundary of the engine
type Server struct {
	engine   *engine.Engine
	exporter *export.Exporter
	resolver IdentityResolver
	cfg      config.ServerConfig
	logger   *zap.Logger
	http     *http.Server
}

// New builds a server over the given engine. Metrics exposure is gated by
// config so deployments without a scraper don't serve the endpoint.
func New(eng *engine.Engine, resolver IdentityResolver, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		engine:   eng,
		exporter: export.NewExporter(eng),
		resolver: resolver,
		cfg:      cfg.Server,
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /tables", s.guarded("create_table", s.handleCreateTable))
	mux.HandleFunc("GET /tables", s.guarded("get_table_data", s.handleGetTableData))
	mux.HandleFunc("DELETE /tables/{tableId}", s.guarded("delete_table", s.handleDeleteTable))

	mux.HandleFunc("PUT /tables/{tableId}/columns", s.guarded("column_mutation", s.handleColumnMutation))
	mux.HandleFunc("GET /tables/{tableId}/columns", s.guarded("list_columns", s.handleListColumns))

	mux.HandleFunc("GET /tables/{tableId}/rows", s.guarded("project_rows", s.handleProjectRows))
	mux.HandleFunc("POST /tables/{tableId}/rows", s.guarded("add_row", s.handleAddRow))
	mux.HandleFunc("DELETE /tables/{tableId}/rows/{rowId}", s.guarded("remove_row", s.handleRemoveRow))
	mux.HandleFunc("PUT /tables/{tableId}/cells", s.guarded("set_cell", s.handleSetCell))

	mux.HandleFunc("POST /references", s.guarded("add_reference", s.handleAddReference))
	mux.HandleFunc("DELETE /references/{referenceId}", s.guarded("remove_reference", s.handleRemoveReference))
	mux.HandleFunc("GET /references", s.guarded("list_references", s.handleListReferences))

	mux.HandleFunc("GET /tables/{tableId}/export", s.guarded("export", s.handleExport))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if cfg.Observability.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	s.http = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// guarded stacks the identity gate inside the observability wrapper so
// rejected requests still appear in logs and metrics
func (s *Server) guarded(route string, next http.HandlerFunc) http.HandlerFunc {
	return s.withObservability(route, s.withIdentity(next))
}

// Handler returns the fully wired handler, used directly by tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.ErrorTypeInternal, "http server failed")
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondMessage(w, http.StatusOK, "ok")
}

// pathID parses a numeric path parameter
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "invalid %s", name)
	}
	return id, nil
}
