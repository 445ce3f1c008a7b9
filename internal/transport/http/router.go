package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wordhub/internal/platform/metrics"
	"wordhub/pkg/platform/httputil"
	adminmw "wordhub/pkg/platform/middleware/admin"
	request "wordhub/pkg/platform/middleware/request"
	"wordhub/pkg/platform/middleware/requesttime"
)

// RouterConfig wires the router.
type RouterConfig struct {
	Handler    *Handler
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	AdminToken string
	// Timeout cancels a request context after this long. Zero means 30s.
	Timeout time.Duration
	// Health reports backend readiness for /healthz. Nil means always healthy.
	Health func(r *http.Request) error
}

// NewRouter builds the full HTTP surface: /v1 behind the admin token plus
// the unauthenticated /healthz and /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(requesttime.Middleware)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r.Use(chimw.Timeout(timeout))
	r.Use(metrics.LatencyMiddleware(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req); err != nil {
				logger.WarnContext(req.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(adminmw.RequireAdminToken(cfg.AdminToken, logger))
		cfg.Handler.Register(v1)
	})
	return r
}
