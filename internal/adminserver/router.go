package adminserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/metrics"
)

// HealthChecker reports whether the backing stores are reachable.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// NewRouter returns the admin routes:
//   - GET /healthz: liveness, always 200
//   - GET /readyz: 200 when health reports no error, else 503
//   - GET /metrics: Prometheus exposition, 404 when metrics are disabled
func NewRouter(health HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok", "")
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			writeStatus(w, http.StatusOK, "ok", "")
			return
		}
		if err := health.Healthcheck(r.Context()); err != nil {
			logger.Warn("Readiness check failed", logger.Err(err))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", "control plane store unreachable")
			return
		}
		writeStatus(w, http.StatusOK, "ok", "")
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !metrics.IsEnabled() {
			http.NotFound(w, r)
			return
		}
		metrics.Handler().ServeHTTP(w, r)
	})

	return r
}

type statusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: status, Detail: detail})
}

// requestLogger logs requests using the internal logger. Probe traffic
// is logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		args := []any{
			logger.KeyRequestID, middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.DurationMs(float64(time.Since(start).Microseconds())/1000),
		}
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			logger.Debug("Admin request completed", args...)
		default:
			logger.Info("Admin request completed", args...)
		}
	})
}
