package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 255
)

// ErrWeakPassword is returned when a raw password fails the policy checks.
var ErrWeakPassword = errors.New("password must be 8-255 characters and contain letters")

// ValidatePassword enforces the password policy: length bounds and at least
// one letter (digit-only passwords are rejected).
func ValidatePassword(raw string) error {
	if len(raw) < minPasswordLength || len(raw) > maxPasswordLength {
		return ErrWeakPassword
	}

	hasLetter := false
	for _, r := range raw {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return ErrWeakPassword
	}

	return nil
}

// HashPassword returns the bcrypt hash of a raw password.
func HashPassword(raw string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether the raw password matches the stored hash.
func VerifyPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
