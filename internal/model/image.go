package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidImageSize is returned when a declared width or height is not a positive integer.
	ErrInvalidImageSize = errors.New("image width and height must be positive")

	// ErrEmptyImageName is returned when an image is created without a name.
	ErrEmptyImageName = errors.New("image name must not be empty")
)

// Image represents a stored image: its metadata and the object path of its bytes.
// The raw bytes live in object storage; Path locates them within the bucket.
type Image struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewImage builds an Image after validating its declared dimensions and name.
func NewImage(owner uuid.UUID, name string, width, height int, path string) (Image, error) {
	if name == "" {
		return Image{}, ErrEmptyImageName
	}
	if width <= 0 || height <= 0 {
		return Image{}, ErrInvalidImageSize
	}

	now := time.Now().UTC()

	return Image{
		ID:        uuid.New(),
		OwnerID:   owner,
		Name:      name,
		Width:     width,
		Height:    height,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
