package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yashar0011/T4D-project/internal/services"
)

// HealthHandler serves liveness and readiness information
type HealthHandler struct {
	health *services.HealthService
	logger *slog.Logger
}

func NewHealthHandler(health *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		health: health,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.GetHealth)
	return r
}

// GetHealth handles GET /api/health. A degraded pipeline still answers
// 200: the process is alive, the payload says what is wrong.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	st := h.health.Check(r.Context())
	if st.Status != "healthy" {
		h.logger.Warn("health check degraded",
			slog.Bool("settings_ok", st.SettingsOK),
			slog.Bool("output_root_ok", st.OutputRootOK))
	}
	render.JSON(w, r, st)
}
