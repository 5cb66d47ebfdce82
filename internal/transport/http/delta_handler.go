// Package http contains the chi handlers of the control API. Handlers
// translate service results into JSON and never reach into the pipeline
// directly.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/services"
)

// DeltaRow is the JSON shape of one height-delta sample
type DeltaRow struct {
	Timestamp time.Time `json:"timestamp"`
	DeltaHmm  float64   `json:"delta_h_mm"`
}

// DeltasResponse wraps the delta history for one point
type DeltasResponse struct {
	Point string     `json:"point"`
	Rows  []DeltaRow `json:"rows"`
}

// DeltaHandler serves the delta history and point list endpoints
type DeltaHandler struct {
	deltas   *services.DeltaService
	settings *services.SettingsService
	logger   *slog.Logger
}

func NewDeltaHandler(deltas *services.DeltaService, settings *services.SettingsService, logger *slog.Logger) *DeltaHandler {
	return &DeltaHandler{
		deltas:   deltas,
		settings: settings,
		logger:   logger.With(slog.String("component", "delta_handler")),
	}
}

func (h *DeltaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/deltas", h.GetDeltas)
	r.Get("/points", h.GetPoints)
	return r
}

// GetDeltas handles GET /api/deltas?point=PT01&hours=24. An unknown
// point or empty history yields an empty row list, never an error: the
// UI copes better with an empty chart than an error page.
func (h *DeltaHandler) GetDeltas(w http.ResponseWriter, r *http.Request) {
	point := r.URL.Query().Get("point")
	if point == "" {
		render.Render(w, r, apierrors.NewAPIError(http.StatusBadRequest,
			"MISSING_PARAMETER", "point query parameter is required"))
		return
	}

	hours := services.DefaultLookbackHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			render.Render(w, r, apierrors.NewAPIError(http.StatusBadRequest,
				"INVALID_PARAMETER", "hours must be an integer"))
			return
		}
		hours = parsed
	}

	rows := h.deltas.Deltas(r.Context(), point, hours)
	resp := DeltasResponse{Point: point, Rows: make([]DeltaRow, 0, len(rows))}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, DeltaRow{Timestamp: row.Timestamp, DeltaHmm: row.DeltaHmm})
	}
	render.JSON(w, r, resp)
}

// GetPoints handles GET /api/points
func (h *DeltaHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.settings.Points(r.Context())
	if err != nil {
		h.logger.Error("cannot list points", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}
	if points == nil {
		points = []string{}
	}
	render.JSON(w, r, points)
}
