package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/pix-erase/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", time.Hour)
	u := &model.User{ID: uuid.New(), Role: model.RoleAdmin}

	raw, err := m.Issue(u)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestTokenWrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewTokenManager("secret-one", time.Hour)
	verifier := NewTokenManager("secret-two", time.Hour)

	raw, err := issuer.Issue(&model.User{ID: uuid.New(), Role: model.RoleAnnotator})
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", -time.Minute)

	raw, err := m.Issue(&model.User{ID: uuid.New(), Role: model.RoleAnnotator})
	require.NoError(t, err)

	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("test-secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := m.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", raw)
	}
}
