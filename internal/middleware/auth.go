package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/pix-erase/internal/api/respond"
	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/model"
)

// userKey is the context key the authenticated user is stored under.
const userKey = "user"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
	errInactiveUser = errors.New("user is deactivated")
)

// tokenVerifier validates access tokens.
type tokenVerifier interface {
	Verify(raw string) (auth.Claims, error)
}

// userRepo loads the account behind the token's subject.
type userRepo interface {
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
}

// Auth returns a middleware that validates a Bearer token, loads the account
// behind it and stores the user in the request context. Requests with a
// missing or bad token, or with a deactivated account, are rejected with 401.
func Auth(tokens tokenVerifier, users userRepo) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respond.Fail(c, http.StatusUnauthorized, errMissingToken)
			c.Abort()
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respond.Fail(c, http.StatusUnauthorized, errInvalidToken)
			c.Abort()
			return
		}

		u, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			respond.Fail(c, http.StatusUnauthorized, errInvalidToken)
			c.Abort()
			return
		}
		if !u.IsActive {
			respond.Fail(c, http.StatusUnauthorized, errInactiveUser)
			c.Abort()
			return
		}

		c.Set(userKey, &u)
		c.Next()
	}
}

// UserFrom returns the authenticated user stored by Auth.
func UserFrom(c *ginext.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}
