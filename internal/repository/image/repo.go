package image

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/pix-erase/internal/model"
)

var ErrImageNotFound = errors.New("image not found")

// Repository provides CRUD operations for image metadata in the database.
// The raw bytes live in object storage; rows here carry ownership and the
// declared dimensions used for authorization and comparison.
type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveImage(ctx context.Context, img model.Image) error {
	query := `
		INSERT INTO images (id, owner_id, name, width, height, path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
   `

	_, err := r.db.ExecContext(
		ctx, query, img.ID, img.OwnerID, img.Name, img.Width, img.Height, img.Path, img.CreatedAt, img.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save: failed to save image: %w", err)
	}

	return nil
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (model.Image, error) {
	query := `
		SELECT owner_id, name, width, height, path, created_at, updated_at
		FROM images
		WHERE id = $1
    `

	var img model.Image
	img.ID = id
	err := r.db.Master.QueryRowContext(
		ctx, query, id,
	).Scan(&img.OwnerID, &img.Name, &img.Width, &img.Height, &img.Path, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Image{}, ErrImageNotFound
		}

		return model.Image{}, fmt.Errorf("get: failed to get image: %w", err)
	}

	return img, nil
}

func (r *Repository) UpdateImage(ctx context.Context, img model.Image) error {
	query := `
		UPDATE images
		SET name = $2, width = $3, height = $4, path = $5, updated_at = $6
		WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, img.ID, img.Name, img.Width, img.Height, img.Path, img.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update: failed to update image: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("update: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrImageNotFound
	}

	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM images WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete image: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrImageNotFound
	}

	return nil
}
