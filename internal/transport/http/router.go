package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public surface: unauthenticated health and metrics
// endpoints, and the ledger API behind bearer-token auth under /api.
func NewRouter(h *Handler, validator TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(RequestTime)
	r.Use(Logger(logger))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(RequireAuth(validator, logger))
		h.Register(api)
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
