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
	"github.com/yashar0011/T4D-project/internal/settings"
)

// SettingsRow is the JSON projection of one configuration row. ID is
// the stable row address used for patches.
type SettingsRow struct {
	ID           int      `json:"id"`
	Active       bool     `json:"active"`
	SensorID     int      `json:"sensor_id"`
	Site         string   `json:"site"`
	PointName    string   `json:"point_name"`
	Type         string   `json:"type"`
	ImportFolder string   `json:"import_folder"`
	ExportFolder string   `json:"export_folder,omitempty"`
	BaselineN    *float64 `json:"baseline_n,omitempty"`
	BaselineE    *float64 `json:"baseline_e,omitempty"`
	BaselineH    float64  `json:"baseline_h"`
	OutlierMAD   float64  `json:"outlier_mad"`
	StartUTC     string   `json:"start_utc"`
	DBImport     bool     `json:"db_import"`
	FileProfile  string   `json:"file_profile"`
}

// SettingsUpdate is the body of a settings patch request
type SettingsUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (u *SettingsUpdate) Bind(r *http.Request) error {
	if u.Field == "" {
		return apierrors.NewAPIError(http.StatusBadRequest, "MISSING_PARAMETER", "field is required")
	}
	return nil
}

// SettingsHandler serves the configuration rows and single-cell patches
type SettingsHandler struct {
	service *services.SettingsService
	logger  *slog.Logger
}

func NewSettingsHandler(service *services.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With(slog.String("component", "settings_handler")),
	}
}

func (h *SettingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.ListSettings)
	r.Put("/{rowID}", h.PatchSetting)
	return r
}

// ListSettings handles GET /api/settings
func (h *SettingsHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Rows(r.Context())
	if err != nil {
		h.logger.Error("cannot load settings", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	out := make([]SettingsRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSettingsRow(row))
	}
	render.JSON(w, r, out)
}

// PatchSetting handles PUT /api/settings/{rowID}: one cell is written
// back to the workbook and a pipeline run is queued.
func (h *SettingsHandler) PatchSetting(w http.ResponseWriter, r *http.Request) {
	rowID, err := strconv.Atoi(chi.URLParam(r, "rowID"))
	if err != nil {
		render.Render(w, r, apierrors.NewAPIError(http.StatusBadRequest,
			"INVALID_PARAMETER", "row id must be an integer"))
		return
	}

	var upd SettingsUpdate
	if err := render.Bind(r, &upd); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.service.Patch(r.Context(), rowID, upd.Field, upd.Value); err != nil {
		h.logger.Warn("settings patch rejected",
			slog.Int("row", rowID),
			slog.String("field", upd.Field),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewAPIErrorWithDetails(http.StatusBadRequest,
			"PATCH_FAILED", "could not patch settings row", err.Error()))
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func toSettingsRow(row settings.Row) SettingsRow {
	return SettingsRow{
		ID:           row.SheetRow,
		Active:       row.Active,
		SensorID:     row.SensorID,
		Site:         row.Site,
		PointName:    row.PointName,
		Type:         string(row.Type),
		ImportFolder: row.ImportFolder,
		ExportFolder: row.ExportFolder,
		BaselineN:    row.BaselineN,
		BaselineE:    row.BaselineE,
		BaselineH:    row.BaselineH,
		OutlierMAD:   row.OutlierMAD,
		StartUTC:     row.StartUTC.UTC().Format(time.RFC3339),
		DBImport:     row.DBImport,
		FileProfile:  row.FileProfile,
	}
}
