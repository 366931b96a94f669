package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "breachstudy/internal/errors"
	"breachstudy/internal/pipeline"
	"breachstudy/internal/websocket"
)

// progressHandler accepts progress events posted by a pipeline process and
// fans them out to connected WebSocket clients through the hub.
func progressHandler(hub *websocket.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event pipeline.ProgressEvent
		if err := render.DecodeJSON(r.Body, &event); err != nil {
			renderAPIError(w, r, logger, apierrors.ErrValidation("body", "Invalid progress event payload"))
			return
		}
		if event.RunID == "" || event.StageID == "" {
			renderAPIError(w, r, logger, apierrors.ErrValidation("run_id", "run_id and stage_id are required"))
			return
		}

		hub.Publish(event)
		logger.DebugContext(r.Context(), "progress event relayed",
			slog.String("run_id", event.RunID),
			slog.String("stage", event.StageID),
			slog.String("status", event.Status))

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]string{"status": "accepted"})
	}
}

func renderAPIError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apiErr); err != nil {
		logger.ErrorContext(r.Context(), "failed to render error response",
			slog.String("error", err.Error()))
	}
}
