package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/services"
)

// defaultLogTail bounds the log endpoint when no tail is requested
const (
	defaultLogTail = 200
	maxLogTail     = 2000
)

// OutputsHandler is the read-only browser over the pipeline output tree
type OutputsHandler struct {
	outputs *services.OutputsService
	logger  *slog.Logger
}

func NewOutputsHandler(outputs *services.OutputsService, logger *slog.Logger) *OutputsHandler {
	return &OutputsHandler{
		outputs: outputs,
		logger:  logger.With(slog.String("component", "outputs_handler")),
	}
}

func (h *OutputsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/sites", h.GetSites)
	r.Get("/tree", h.GetTree)
	r.Get("/file", h.GetFile)
	return r
}

// GetSites handles GET /api/outputs/sites
func (h *OutputsHandler) GetSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.outputs.Sites()
	if err != nil {
		h.logger.Error("cannot list sites", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}
	if sites == nil {
		sites = []string{}
	}
	render.JSON(w, r, sites)
}

// GetTree handles GET /api/outputs/tree?path=SiteA/2024-01-02
func (h *OutputsHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	names, err := h.outputs.Tree(r.URL.Query().Get("path"))
	if err != nil {
		h.renderOutputsError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	render.JSON(w, r, names)
}

// GetFile handles GET /api/outputs/file?path=... by serving the file
func (h *OutputsHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	full, err := h.outputs.FilePath(r.URL.Query().Get("path"))
	if err != nil {
		h.renderOutputsError(w, r, err)
		return
	}
	http.ServeFile(w, r, full)
}

// Logs handles GET /api/logs?site=SiteA&tail=200
func (h *OutputsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	site := r.URL.Query().Get("site")
	if site == "" {
		render.Render(w, r, apierrors.NewAPIError(http.StatusBadRequest,
			"MISSING_PARAMETER", "site query parameter is required"))
		return
	}

	tail := defaultLogTail
	if raw := r.URL.Query().Get("tail"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			render.Render(w, r, apierrors.NewAPIError(http.StatusBadRequest,
				"INVALID_PARAMETER", "tail must be a positive integer"))
			return
		}
		if parsed > maxLogTail {
			parsed = maxLogTail
		}
		tail = parsed
	}

	lines, err := h.outputs.LogTail(site, tail)
	if err != nil {
		h.renderOutputsError(w, r, err)
		return
	}
	render.JSON(w, r, lines)
}

func (h *OutputsHandler) renderOutputsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrIllegalPath):
		render.Render(w, r, apierrors.ErrIllegalPath)
	case errors.Is(err, services.ErrNotFound):
		render.Render(w, r, apierrors.ErrNotFound)
	default:
		h.logger.Error("outputs request failed", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
	}
}
