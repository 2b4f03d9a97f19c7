package task

import (
	"context"
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/api/respond"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/task"
)

// service reports the current state of a queued task.
type service interface {
	Status(ctx context.Context, rawID string) (model.Task, error)
}

// Handler provides the task status endpoint.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Status returns the current state of a task by its id.
func (h *Handler) Status(c *ginext.Context) {
	t, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidTaskID):
			respond.Fail(c, http.StatusBadRequest, err)
		case errors.Is(err, task.ErrTaskNotFound):
			respond.Fail(c, http.StatusNotFound, errors.New("task not found"))
		default:
			zlog.Logger.Err(err).Msg("failed to get task status")
			respond.Fail(c, http.StatusInternalServerError, errors.New("failed to get task status"))
		}
		return
	}

	respond.OK(c, t)
}
