package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/api/respond"
	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/repository/user"
	usersvc "github.com/aliskhannn/pix-erase/internal/service/user"
)

// service defines the account operations used by the public endpoints.
type service interface {
	SignUp(ctx context.Context, email, name, password string) (model.User, error)
	LogIn(ctx context.Context, email, password string) (string, error)
}

// Handler provides the public registration and login endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LogInRequest is the login payload.
type LogInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp registers a new annotator account.
func (h *Handler) SignUp(c *ginext.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	u, err := h.service.SignUp(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, usersvc.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			respond.Fail(c, http.StatusBadRequest, err)
		case errors.Is(err, user.ErrEmailTaken):
			respond.Fail(c, http.StatusConflict, err)
		default:
			zlog.Logger.Err(err).Msg("failed to register user")
			respond.Fail(c, http.StatusInternalServerError, errors.New("failed to register user"))
		}
		return
	}

	respond.Created(c, map[string]interface{}{
		"id":    u.ID,
		"email": u.Email,
		"role":  u.Role,
	})
}

// LogIn exchanges valid credentials for an access token.
func (h *Handler) LogIn(c *ginext.Context) {
	var req LogInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	token, err := h.service.LogIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, usersvc.ErrInvalidCredentials), errors.Is(err, usersvc.ErrUserInactive):
			respond.Fail(c, http.StatusUnauthorized, err)
		default:
			zlog.Logger.Err(err).Msg("failed to log user in")
			respond.Fail(c, http.StatusInternalServerError, errors.New("failed to log in"))
		}
		return
	}

	respond.OK(c, map[string]interface{}{"access_token": token})
}
