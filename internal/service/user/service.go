// Package user contains the command handlers for account management. Role
// sensitive operations authorize against the role hierarchy before touching
// the repository.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/model"
)

var (
	// ErrInvalidCredentials is returned on login with a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidEmail is returned when an email address fails to parse.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidRole is returned when a role outside the known set is requested.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyName is returned when a display name is blank.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrUserInactive is returned on login for a deactivated account.
	ErrUserInactive = errors.New("user is deactivated")
)

// repository defines the user persistence operations the handlers need.
type repository interface {
	SaveUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, u model.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// tokenIssuer signs access tokens for authenticated users.
type tokenIssuer interface {
	Issue(u *model.User) (string, error)
}

// Service provides the account command handlers.
type Service struct {
	repo       repository
	tokens     tokenIssuer
	hierarchy  auth.Hierarchy
	bcryptCost int
}

// NewService creates a new Service.
func NewService(repo repository, tokens tokenIssuer, h auth.Hierarchy, bcryptCost int) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		hierarchy:  h,
		bcryptCost: bcryptCost,
	}
}

// SignUp registers a new annotator account.
func (s *Service) SignUp(ctx context.Context, email, name, password string) (model.User, error) {
	u, err := s.newUser(email, name, password, model.RoleAnnotator)
	if err != nil {
		return model.User{}, err
	}

	if err := s.repo.SaveUser(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("signup: %w", err)
	}

	zlog.Logger.Info().
		Str("user_id", u.ID.String()).
		Str("role", string(u.Role)).
		Msg("user registered")

	return u, nil
}

// Bootstrap creates the initial super admin account. It is a no-op when the
// email is empty or already registered, so repeated startups stay idempotent.
func (s *Service) Bootstrap(ctx context.Context, email, name, password string) error {
	if email == "" {
		return nil
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil
	}

	u, err := s.newUser(email, name, password, model.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := s.repo.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	zlog.Logger.Info().
		Str("user_id", u.ID.String()).
		Msg("seeded super admin account")

	return nil
}

// LogIn verifies the credentials and returns a signed access token.
func (s *Service) LogIn(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		return "", ErrInvalidCredentials
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	if !u.IsActive {
		return "", ErrUserInactive
	}

	token, err := s.tokens.Issue(&u)
	if err != nil {
		return "", fmt.Errorf("login: failed to issue token: %w", err)
	}

	return token, nil
}

// Me returns the actor's own account.
func (s *Service) Me(ctx context.Context, actorID uuid.UUID) (model.User, error) {
	return s.repo.GetUser(ctx, actorID)
}

// List returns every registered account. Only users who manage annotators,
// i.e. admins and above, may enumerate accounts.
func (s *Service) List(ctx context.Context, actor *model.User) ([]model.User, error) {
	perm := auth.CanManageRole{Hierarchy: s.hierarchy}
	if err := auth.Authorize(perm, auth.Context{Subject: actor, TargetRole: model.RoleAnnotator}); err != nil {
		return nil, err
	}

	return s.repo.ListUsers(ctx)
}

// Get returns the actor's own account or a subordinate's.
func (s *Service) Get(ctx context.Context, actor *model.User, targetID uuid.UUID) (model.User, error) {
	return s.authorizeTarget(ctx, actor, targetID, s.selfOrSubordinate())
}

// Create registers an account with an explicit role. The actor must manage
// the requested role.
func (s *Service) Create(ctx context.Context, actor *model.User, email, name, password string, role model.Role) (model.User, error) {
	if !role.Valid() {
		return model.User{}, ErrInvalidRole
	}

	perm := auth.CanManageRole{Hierarchy: s.hierarchy}
	if err := auth.Authorize(perm, auth.Context{Subject: actor, TargetRole: role}); err != nil {
		return model.User{}, err
	}

	u, err := s.newUser(email, name, password, role)
	if err != nil {
		return model.User{}, err
	}

	if err := s.repo.SaveUser(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	zlog.Logger.Info().
		Str("user_id", u.ID.String()).
		Str("role", string(u.Role)).
		Str("actor_id", actor.ID.String()).
		Msg("user created")

	return u, nil
}

// Delete removes a subordinate account.
func (s *Service) Delete(ctx context.Context, actor *model.User, targetID uuid.UUID) error {
	target, err := s.authorizeTarget(ctx, actor, targetID, auth.CanManageSubordinate{Hierarchy: s.hierarchy})
	if err != nil {
		return err
	}

	if err := s.repo.DeleteUser(ctx, target.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

// GrantAdmin promotes an annotator to admin.
func (s *Service) GrantAdmin(ctx context.Context, actor *model.User, targetID uuid.UUID) error {
	return s.changeRole(ctx, actor, targetID, model.RoleAdmin)
}

// RevokeAdmin demotes an admin back to annotator.
func (s *Service) RevokeAdmin(ctx context.Context, actor *model.User, targetID uuid.UUID) error {
	return s.changeRole(ctx, actor, targetID, model.RoleAnnotator)
}

// changeRole moves the target between annotator and admin. Both the current
// and the requested role must be manageable by the actor, which keeps
// super admin accounts untouchable.
func (s *Service) changeRole(ctx context.Context, actor *model.User, targetID uuid.UUID, role model.Role) error {
	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return err
	}

	perm := auth.CanManageRole{Hierarchy: s.hierarchy}
	if err := auth.Authorize(perm, auth.Context{Subject: actor, TargetRole: target.Role}); err != nil {
		return err
	}
	if err := auth.Authorize(perm, auth.Context{Subject: actor, TargetRole: role}); err != nil {
		return err
	}

	if target.Role == role {
		return nil
	}
	target.Role = role

	if err := s.repo.UpdateUser(ctx, target); err != nil {
		return fmt.Errorf("change role: %w", err)
	}

	zlog.Logger.Info().
		Str("user_id", target.ID.String()).
		Str("role", string(role)).
		Str("actor_id", actor.ID.String()).
		Msg("role changed")

	return nil
}

// Activate re-enables a subordinate account.
func (s *Service) Activate(ctx context.Context, actor *model.User, targetID uuid.UUID) error {
	return s.setActive(ctx, actor, targetID, true)
}

// Deactivate disables a subordinate account. Deactivated users cannot log in.
func (s *Service) Deactivate(ctx context.Context, actor *model.User, targetID uuid.UUID) error {
	return s.setActive(ctx, actor, targetID, false)
}

func (s *Service) setActive(ctx context.Context, actor *model.User, targetID uuid.UUID, active bool) error {
	target, err := s.authorizeTarget(ctx, actor, targetID, auth.CanManageSubordinate{Hierarchy: s.hierarchy})
	if err != nil {
		return err
	}

	if target.IsActive == active {
		return nil
	}
	target.IsActive = active

	if err := s.repo.UpdateUser(ctx, target); err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return nil
}

// ChangeName updates the display name of the actor's own account or of a
// subordinate.
func (s *Service) ChangeName(ctx context.Context, actor *model.User, targetID uuid.UUID, name string) error {
	if name == "" {
		return ErrEmptyName
	}

	target, err := s.authorizeTarget(ctx, actor, targetID, s.selfOrSubordinate())
	if err != nil {
		return err
	}

	target.Name = name
	if err := s.repo.UpdateUser(ctx, target); err != nil {
		return fmt.Errorf("change name: %w", err)
	}

	return nil
}

// ChangeEmail updates the email of the actor's own account or of a subordinate.
func (s *Service) ChangeEmail(ctx context.Context, actor *model.User, targetID uuid.UUID, email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}

	target, err := s.authorizeTarget(ctx, actor, targetID, s.selfOrSubordinate())
	if err != nil {
		return err
	}

	target.Email = email
	if err := s.repo.UpdateUser(ctx, target); err != nil {
		return fmt.Errorf("change email: %w", err)
	}

	return nil
}

// ChangePassword rehashes and stores a new password for the actor's own
// account or for a subordinate.
func (s *Service) ChangePassword(ctx context.Context, actor *model.User, targetID uuid.UUID, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	target, err := s.authorizeTarget(ctx, actor, targetID, s.selfOrSubordinate())
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	target.PasswordHash = hash
	if err := s.repo.UpdateUser(ctx, target); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return nil
}

func (s *Service) selfOrSubordinate() auth.Permission {
	return auth.AnyOf(auth.CanManageSelf{}, auth.CanManageSubordinate{Hierarchy: s.hierarchy})
}

// authorizeTarget loads the target account and evaluates the permission with
// the actor as subject.
func (s *Service) authorizeTarget(ctx context.Context, actor *model.User, targetID uuid.UUID, perm auth.Permission) (model.User, error) {
	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return model.User{}, err
	}

	permCtx := auth.Context{Subject: actor, Target: &target}
	if err := auth.Authorize(perm, permCtx); err != nil {
		return model.User{}, err
	}

	return target, nil
}

func (s *Service) newUser(email, name, password string, role model.Role) (model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return model.User{}, ErrInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return model.User{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	return model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
