package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/api/respond"
	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/middleware"
	"github.com/aliskhannn/pix-erase/internal/model"
	userrepo "github.com/aliskhannn/pix-erase/internal/repository/user"
	usersvc "github.com/aliskhannn/pix-erase/internal/service/user"
)

// service defines the account management operations behind the endpoints.
type service interface {
	Me(ctx context.Context, actorID uuid.UUID) (model.User, error)
	List(ctx context.Context, actor *model.User) ([]model.User, error)
	Get(ctx context.Context, actor *model.User, targetID uuid.UUID) (model.User, error)
	Create(ctx context.Context, actor *model.User, email, name, password string, role model.Role) (model.User, error)
	Delete(ctx context.Context, actor *model.User, targetID uuid.UUID) error
	GrantAdmin(ctx context.Context, actor *model.User, targetID uuid.UUID) error
	RevokeAdmin(ctx context.Context, actor *model.User, targetID uuid.UUID) error
	Activate(ctx context.Context, actor *model.User, targetID uuid.UUID) error
	Deactivate(ctx context.Context, actor *model.User, targetID uuid.UUID) error
	ChangeName(ctx context.Context, actor *model.User, targetID uuid.UUID, name string) error
	ChangeEmail(ctx context.Context, actor *model.User, targetID uuid.UUID, email string) error
	ChangePassword(ctx context.Context, actor *model.User, targetID uuid.UUID, password string) error
}

// Handler provides HTTP handlers for account management endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// CreateRequest is the payload for creating an account with an explicit role.
type CreateRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Me returns the authenticated user's own account.
func (h *Handler) Me(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	u, err := h.service.Me(c.Request.Context(), actor.ID)
	if err != nil {
		respond.Fail(c, http.StatusInternalServerError, errors.New("failed to load account"))
		return
	}

	respond.OK(c, userView(u))
}

// List returns every registered account.
func (h *Handler) List(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	users, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		failUserOp(c, err, "failed to list users")
		return
	}

	views := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}

	respond.OK(c, views)
}

// Get returns one account by id.
func (h *Handler) Get(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	u, err := h.service.Get(c.Request.Context(), actor, targetID)
	if err != nil {
		failUserOp(c, err, "failed to load user")
		return
	}

	respond.OK(c, userView(u))
}

// Create registers an account with an explicit role.
func (h *Handler) Create(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	u, err := h.service.Create(c.Request.Context(), actor, req.Email, req.Name, req.Password, model.Role(req.Role))
	if err != nil {
		failUserOp(c, err, "failed to create user")
		return
	}

	respond.Created(c, userView(u))
}

// Delete removes a subordinate account.
func (h *Handler) Delete(c *ginext.Context) {
	h.targetAction(c, h.service.Delete)
}

// GrantAdmin promotes an annotator to admin.
func (h *Handler) GrantAdmin(c *ginext.Context) {
	h.targetAction(c, h.service.GrantAdmin)
}

// RevokeAdmin demotes an admin back to annotator.
func (h *Handler) RevokeAdmin(c *ginext.Context) {
	h.targetAction(c, h.service.RevokeAdmin)
}

// Activate re-enables a deactivated account.
func (h *Handler) Activate(c *ginext.Context) {
	h.targetAction(c, h.service.Activate)
}

// Deactivate disables an account.
func (h *Handler) Deactivate(c *ginext.Context) {
	h.targetAction(c, h.service.Deactivate)
}

// ChangeName updates a display name.
func (h *Handler) ChangeName(c *ginext.Context) {
	h.fieldAction(c, "name", h.service.ChangeName)
}

// ChangeEmail updates an email address.
func (h *Handler) ChangeEmail(c *ginext.Context) {
	h.fieldAction(c, "email", h.service.ChangeEmail)
}

// ChangePassword sets a new password.
func (h *Handler) ChangePassword(c *ginext.Context) {
	h.fieldAction(c, "password", h.service.ChangePassword)
}

// targetAction runs an operation that takes only the target user id.
func (h *Handler) targetAction(c *ginext.Context, op func(context.Context, *model.User, uuid.UUID) error) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	if err := op(c.Request.Context(), actor, targetID); err != nil {
		failUserOp(c, err, "operation failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// fieldAction runs an operation that takes the target user id and a single
// string value from the request body.
func (h *Handler) fieldAction(c *ginext.Context, field string, op func(context.Context, *model.User, uuid.UUID, string) error) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}
	value, ok := body[field]
	if !ok || value == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("%s is required", field))
		return
	}

	if err := op(c.Request.Context(), actor, targetID, value); err != nil {
		failUserOp(c, err, "operation failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// failUserOp maps account service errors onto HTTP statuses.
func failUserOp(c *ginext.Context, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrNotAuthorized):
		respond.Fail(c, http.StatusForbidden, err)
	case errors.Is(err, userrepo.ErrUserNotFound):
		respond.Fail(c, http.StatusNotFound, err)
	case errors.Is(err, userrepo.ErrEmailTaken):
		respond.Fail(c, http.StatusConflict, err)
	case errors.Is(err, usersvc.ErrInvalidEmail),
		errors.Is(err, usersvc.ErrInvalidRole),
		errors.Is(err, usersvc.ErrEmptyName),
		errors.Is(err, auth.ErrWeakPassword):
		respond.Fail(c, http.StatusBadRequest, err)
	default:
		zlog.Logger.Err(err).Msg(fallback)
		respond.Fail(c, http.StatusInternalServerError, errors.New(fallback))
	}
}

func userView(u model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"role":       u.Role,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
}
