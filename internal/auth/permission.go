package auth

import (
	"errors"

	"github.com/google/uuid"

	"github.com/aliskhannn/pix-erase/internal/model"
)

// ErrNotAuthorized is returned by Authorize when a permission denies the action.
var ErrNotAuthorized = errors.New("not authorized")

// Context carries the facts a permission is evaluated against. Subject is
// always required; the remaining fields are filled per use case.
type Context struct {
	Subject    *model.User
	Target     *model.User
	TargetRole model.Role
	ImageOwner uuid.UUID
}

// Permission is a boolean predicate over an authorization context.
// Evaluation is pure: denial is a normal false result, never an error.
type Permission interface {
	Allows(ctx Context) bool
}

// AnyOf is satisfied when at least one of its child permissions is.
// Children are evaluated in order and evaluation stops at the first success.
func AnyOf(perms ...Permission) Permission {
	return anyOf(perms)
}

type anyOf []Permission

func (a anyOf) Allows(ctx Context) bool {
	for _, p := range a {
		if p.Allows(ctx) {
			return true
		}
	}
	return false
}

// CanManageSelf allows a subject to act on its own account.
type CanManageSelf struct{}

func (CanManageSelf) Allows(ctx Context) bool {
	mustHaveSubject(ctx)
	return ctx.Target != nil && ctx.Subject.ID == ctx.Target.ID
}

// CanManageSubordinate allows a subject to act on a user whose role is
// subordinate to the subject's role in the hierarchy.
type CanManageSubordinate struct {
	Hierarchy Hierarchy
}

func (p CanManageSubordinate) Allows(ctx Context) bool {
	mustHaveSubject(ctx)
	if ctx.Target == nil {
		return false
	}
	return p.Hierarchy.Manages(ctx.Subject.Role, ctx.Target.Role)
}

// CanManageRole allows a subject to assign or act on a given role.
type CanManageRole struct {
	Hierarchy Hierarchy
}

func (p CanManageRole) Allows(ctx Context) bool {
	mustHaveSubject(ctx)
	return p.Hierarchy.Manages(ctx.Subject.Role, ctx.TargetRole)
}

// OwnsImage allows a subject to act on an image it owns.
type OwnsImage struct{}

func (OwnsImage) Allows(ctx Context) bool {
	mustHaveSubject(ctx)
	return ctx.ImageOwner != uuid.Nil && ctx.Subject.ID == ctx.ImageOwner
}

// Authorize evaluates the permission and converts denial into ErrNotAuthorized.
func Authorize(p Permission, ctx Context) error {
	if !p.Allows(ctx) {
		return ErrNotAuthorized
	}
	return nil
}

// A missing subject is a wiring bug, not a denial: fail fast instead of
// silently denying.
func mustHaveSubject(ctx Context) {
	if ctx.Subject == nil {
		panic("auth: permission evaluated without a subject")
	}
}
