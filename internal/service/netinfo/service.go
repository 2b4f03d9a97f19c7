// Package netinfo contains the command handlers for internet domain analysis.
package netinfo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/netinfo"
	"github.com/aliskhannn/pix-erase/internal/task"
)

// ErrInvalidInterval is returned when a re-analysis interval is not positive.
var ErrInvalidInterval = errors.New("interval must be positive")

// dispatcher submits units of work for asynchronous execution.
type dispatcher interface {
	Submit(ctx context.Context, kind string, payload any) (model.TaskID, error)
}

// scheduler manages delayed and periodic task submission.
type scheduler interface {
	ScheduleEvery(ctx context.Context, kind string, payload any, interval time.Duration) (string, error)
	Cancel(ctx context.Context, scheduleID string) error
}

// Service provides the domain analysis command handlers.
type Service struct {
	dispatcher dispatcher
	scheduler  scheduler
	hierarchy  auth.Hierarchy
}

// NewService creates a new Service.
func NewService(d dispatcher, s scheduler, h auth.Hierarchy) *Service {
	return &Service{dispatcher: d, scheduler: s, hierarchy: h}
}

// Analyze submits a one-off analysis of the given domain.
func (s *Service) Analyze(ctx context.Context, actor *model.User, domain string) (model.TaskID, error) {
	if err := netinfo.ValidateDomain(domain); err != nil {
		return "", err
	}

	return s.dispatcher.Submit(ctx, task.KindAnalyzeDomain, task.DomainPayload{Domain: domain})
}

// ScheduleReanalysis registers a periodic re-analysis of the domain. Only
// users who manage annotators, i.e. admins and above, may create schedules.
func (s *Service) ScheduleReanalysis(ctx context.Context, actor *model.User, domain string, interval time.Duration) (string, error) {
	if err := netinfo.ValidateDomain(domain); err != nil {
		return "", err
	}
	if interval <= 0 {
		return "", ErrInvalidInterval
	}

	perm := auth.CanManageRole{Hierarchy: s.hierarchy}
	if err := auth.Authorize(perm, auth.Context{Subject: actor, TargetRole: model.RoleAnnotator}); err != nil {
		return "", err
	}

	id, err := s.scheduler.ScheduleEvery(ctx, task.KindAnalyzeDomain, task.DomainPayload{Domain: domain}, interval)
	if err != nil {
		return "", fmt.Errorf("schedule reanalysis: %w", err)
	}

	return id, nil
}

// CancelReanalysis removes a pending periodic schedule.
func (s *Service) CancelReanalysis(ctx context.Context, actor *model.User, scheduleID string) error {
	perm := auth.CanManageRole{Hierarchy: s.hierarchy}
	if err := auth.Authorize(perm, auth.Context{Subject: actor, TargetRole: model.RoleAnnotator}); err != nil {
		return err
	}

	return s.scheduler.Cancel(ctx, scheduleID)
}
