package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level of a user account. Roles form a hierarchy:
// super_admin manages admins and annotators, admin manages annotators.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleAnnotator  Role = "annotator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleAnnotator:
		return true
	}
	return false
}

// User represents a user account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
