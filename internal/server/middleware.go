package server

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gridbase/gridbase/pkg/errors"
	"github.com/gridbase/gridbase/pkg/logger"
	"github.com/gridbase/gridbase/pkg/metrics"
	"github.com/gridbase/gridbase/pkg/observability"
)

var requestCounter atomic.Int64

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withObservability wraps a route with request logging, metrics, and a span.
// The route label keeps metric cardinality bounded regardless of path
// parameters.
func (s *Server) withObservability(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strconv.FormatInt(requestCounter.Add(1), 10)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)

		ctx, span := observability.StartSpan(ctx, "http "+route,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))

		observability.EndSpan(span, nil)

		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		logger.WithContext(ctx).Info("request handled",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed))
	}
}

// withIdentity rejects requests that lack a resolvable caller identity
// before any handler logic runs. The resolved user id travels in the
// request context.
func (s *Server) withIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			respondError(w, errors.New(errors.ErrorTypeUnauthorized, "missing credentials"))
			return
		}

		userID, err := s.resolver.Resolve(r.Context(), token)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.ErrorTypeUnauthorized, "unauthorized"))
			return
		}

		ctx := context.WithValue(r.Context(), logger.UserIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}
