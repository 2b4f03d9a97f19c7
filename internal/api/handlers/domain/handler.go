package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/api/respond"
	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/middleware"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/netinfo"
	netinfosvc "github.com/aliskhannn/pix-erase/internal/service/netinfo"
)

// service defines the domain analysis operations behind the endpoints.
type service interface {
	Analyze(ctx context.Context, actor *model.User, domain string) (model.TaskID, error)
	ScheduleReanalysis(ctx context.Context, actor *model.User, domain string, interval time.Duration) (string, error)
	CancelReanalysis(ctx context.Context, actor *model.User, scheduleID string) error
}

// Handler provides HTTP handlers for domain analysis endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// AnalyzeRequest names the domain to analyze.
type AnalyzeRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// ScheduleRequest names the domain and re-analysis interval.
type ScheduleRequest struct {
	Domain   string `json:"domain" binding:"required"`
	Interval string `json:"interval" binding:"required"`
}

// Analyze queues a one-off analysis of a domain.
func (h *Handler) Analyze(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Analyze(c.Request.Context(), actor, req.Domain)
	if err != nil {
		failDomainOp(c, err)
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// Schedule registers a periodic re-analysis of a domain.
func (h *Handler) Schedule(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	interval, err := time.ParseDuration(req.Interval)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, errors.New("invalid interval"))
		return
	}

	id, err := h.service.ScheduleReanalysis(c.Request.Context(), actor, req.Domain, interval)
	if err != nil {
		failDomainOp(c, err)
		return
	}

	respond.Created(c, map[string]interface{}{"schedule_id": id})
}

// CancelSchedule removes a pending periodic schedule.
func (h *Handler) CancelSchedule(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	if err := h.service.CancelReanalysis(c.Request.Context(), actor, c.Param("id")); err != nil {
		failDomainOp(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func failDomainOp(c *ginext.Context, err error) {
	switch {
	case errors.Is(err, netinfo.ErrInvalidDomain), errors.Is(err, netinfosvc.ErrInvalidInterval):
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, auth.ErrNotAuthorized):
		respond.Fail(c, http.StatusForbidden, err)
	default:
		zlog.Logger.Err(err).Msg("domain operation failed")
		respond.Fail(c, http.StatusInternalServerError, errors.New("domain operation failed"))
	}
}
