package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/pipeline"
	"github.com/yashar0011/T4D-project/internal/services"
)

// CommandRequest is the body of a pipeline control request
type CommandRequest struct {
	Command string `json:"command"`
}

func (c *CommandRequest) Bind(r *http.Request) error {
	if c.Command == "" {
		return apierrors.NewAPIError(http.StatusBadRequest, "MISSING_PARAMETER", "command is required")
	}
	return nil
}

// CommandHandler forwards control commands to the background watcher
type CommandHandler struct {
	queue  services.CommandQueue
	logger *slog.Logger
}

func NewCommandHandler(queue services.CommandQueue, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		queue:  queue,
		logger: logger.With(slog.String("component", "command_handler")),
	}
}

func (h *CommandHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/", h.PostCommand)
	return r
}

// PostCommand handles POST /api/command with {"command": "run_once"}
func (h *CommandHandler) PostCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	cmd, ok := pipeline.ParseCommand(req.Command)
	if !ok {
		render.Render(w, r, apierrors.NewAPIError(http.StatusBadRequest,
			"INVALID_PARAMETER", "command must be run_once, full_build or stop"))
		return
	}

	if !h.queue.Enqueue(cmd) {
		render.Render(w, r, apierrors.NewAPIError(http.StatusServiceUnavailable,
			"QUEUE_FULL", "command queue is full, try again later"))
		return
	}

	h.logger.Info("command queued", slog.String("command", string(cmd)))
	render.JSON(w, r, map[string]bool{"queued": true})
}
