package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/pix-erase/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already taken")
)

// Repository provides CRUD operations for user accounts in the database.
type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveUser(ctx context.Context, u model.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO NOTHING
   `

	rows, err := r.db.ExecContext(
		ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save: failed to save user: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("save: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrEmailTaken
	}

	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `
		SELECT email, name, password_hash, role, is_active, created_at
		FROM users
		WHERE id = $1
    `

	var u model.User
	u.ID = id
	err := r.db.Master.QueryRowContext(
		ctx, query, id,
	).Scan(&u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}

		return model.User{}, fmt.Errorf("get: failed to get user: %w", err)
	}

	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	query := `
		SELECT id, name, password_hash, role, is_active, created_at
		FROM users
		WHERE email = $1
    `

	var u model.User
	u.Email = email
	err := r.db.Master.QueryRowContext(
		ctx, query, email,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}

		return model.User{}, fmt.Errorf("get: failed to get user by email: %w", err)
	}

	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]model.User, error) {
	query := `
		SELECT id, email, name, password_hash, role, is_active, created_at
		FROM users
		ORDER BY created_at
    `

	rows, err := r.db.Master.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("list: failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: failed to iterate users: %w", err)
	}

	return users, nil
}

func (r *Repository) UpdateUser(ctx context.Context, u model.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, password_hash = $4, role = $5, is_active = $6
		WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.IsActive)
	if err != nil {
		return fmt.Errorf("update: failed to update user: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("update: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM users WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete user: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrUserNotFound
	}

	return nil
}
