package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"password1", "abcdefgh", "pass word 8", strings.Repeat("a", 255)} {
		assert.NoError(t, ValidatePassword(p), "password %q", p)
	}

	for _, p := range []string{"", "short", "1234567", "12345678", strings.Repeat("a", 256)} {
		assert.ErrorIs(t, ValidatePassword(p), ErrWeakPassword, "password %q", p)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("password1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "password1", hash)

	assert.True(t, VerifyPassword(hash, "password1"))
	assert.False(t, VerifyPassword(hash, "password2"))
}
