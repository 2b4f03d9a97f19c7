// Package image contains the command handlers for image operations. Every
// transformation follows the same shape: validate parameters, authorize the
// actor against the target image, then submit a task and return its id.
// Handlers never run converter work inline.
package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"

	// Register the codecs accepted for upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/converter"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/task"
)

// ErrValidation is the base class of all parameter validation failures.
// They are reported synchronously and never reach the queue.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidScale      = fmt.Errorf("%w: scale must be 2, 3 or 4", ErrValidation)
	ErrInvalidAlgorithm  = fmt.Errorf("%w: algorithm must be AI or NearestNeighbour", ErrValidation)
	ErrInvalidAngle      = fmt.Errorf("%w: angle must be a non-zero value between -359 and 359", ErrValidation)
	ErrInvalidQuality    = fmt.Errorf("%w: quality must be between 1 and 100", ErrValidation)
	ErrInvalidDimensions = fmt.Errorf("%w: width and height must be positive", ErrValidation)
	ErrInvalidCrop       = fmt.Errorf("%w: crop offsets must be non-negative and size positive", ErrValidation)
	ErrSameImage         = fmt.Errorf("%w: cannot compare an image with itself", ErrValidation)
	ErrUndecodableImage  = fmt.Errorf("%w: uploaded data is not a supported image", ErrValidation)
)

// ErrNotOwner is returned when the target image does not belong to the actor
// and the actor holds no managing role over the owner. Distinct from both
// not-found and validation failures.
var ErrNotOwner = errors.New("image does not belong to this user")

// ErrNoExif is returned when the stored bytes carry no EXIF metadata.
var ErrNoExif = errors.New("image has no exif metadata")

// imageRepo defines the image metadata operations the handlers need.
type imageRepo interface {
	SaveImage(ctx context.Context, img model.Image) error
	GetImage(ctx context.Context, id uuid.UUID) (model.Image, error)
	UpdateImage(ctx context.Context, img model.Image) error
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// userRepo resolves image owners for the management-role ownership check.
type userRepo interface {
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
}

// fileStorage defines the interface for storing image bytes (e.g. MinIO).
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// dispatcher submits units of work for asynchronous execution.
type dispatcher interface {
	Submit(ctx context.Context, kind string, payload any) (model.TaskID, error)
}

// Service provides the image command handlers.
type Service struct {
	images     imageRepo
	users      userRepo
	files      fileStorage
	dispatcher dispatcher
	hierarchy  auth.Hierarchy
}

// NewService creates a new Service.
func NewService(images imageRepo, users userRepo, files fileStorage, d dispatcher, h auth.Hierarchy) *Service {
	return &Service{
		images:     images,
		users:      users,
		files:      files,
		dispatcher: d,
		hierarchy:  h,
	}
}

// Create stores an uploaded image: bytes go to object storage, metadata with
// the decoded dimensions goes to the repository.
func (s *Service) Create(ctx context.Context, actor *model.User, name string, data []byte) (model.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Image{}, ErrUndecodableImage
	}

	img, err := model.NewImage(actor.ID, name, cfg.Width, cfg.Height, "")
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dst, err := s.files.Save(ctx, "original", img.ID.String()+filepath.Ext(name), bytes.NewReader(data))
	if err != nil {
		return model.Image{}, fmt.Errorf("create: failed to save file: %w", err)
	}
	img.Path = dst

	if err := s.images.SaveImage(ctx, img); err != nil {
		return model.Image{}, fmt.Errorf("create: failed to save image: %w", err)
	}

	zlog.Logger.Info().
		Str("image_id", img.ID.String()).
		Str("owner_id", actor.ID.String()).
		Msg("image created")

	return img, nil
}

// Read returns the image metadata and a reader over its bytes.
func (s *Service) Read(ctx context.Context, actor *model.User, id uuid.UUID) (model.Image, io.ReadCloser, error) {
	img, err := s.authorizeImage(ctx, actor, id)
	if err != nil {
		return model.Image{}, nil, err
	}

	rc, err := s.files.Load(ctx, img.Path)
	if err != nil {
		return model.Image{}, nil, fmt.Errorf("read: failed to load file: %w", err)
	}

	return img, rc, nil
}

// Exif returns the metadata fields embedded in the stored image bytes.
// Reading is synchronous; no pixel work is involved.
func (s *Service) Exif(ctx context.Context, actor *model.User, id uuid.UUID) (map[string]string, error) {
	img, err := s.authorizeImage(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	rc, err := s.files.Load(ctx, img.Path)
	if err != nil {
		return nil, fmt.Errorf("exif: failed to load file: %w", err)
	}
	defer rc.Close()

	x, err := exif.Decode(rc)
	if err != nil {
		return nil, ErrNoExif
	}

	fields := exifFields{}
	if err := x.Walk(fields); err != nil {
		return nil, fmt.Errorf("exif: failed to walk fields: %w", err)
	}

	return fields, nil
}

// exifFields collects tag values during an exif walk.
type exifFields map[string]string

func (f exifFields) Walk(name exif.FieldName, tag *tiff.Tag) error {
	f[string(name)] = tag.String()
	return nil
}

// Delete removes the image metadata and its bytes.
func (s *Service) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	img, err := s.authorizeImage(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.images.DeleteImage(ctx, id); err != nil {
		return fmt.Errorf("delete: failed to delete image: %w", err)
	}
	if err := s.files.Delete(ctx, img.Path); err != nil {
		zlog.Logger.Err(err).Str("path", img.Path).Msg("failed to delete image bytes")
	}

	return nil
}

// ChangeName renames an image synchronously; no pixel work is involved.
func (s *Service) ChangeName(ctx context.Context, actor *model.User, id uuid.UUID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %v", ErrValidation, model.ErrEmptyImageName)
	}

	img, err := s.authorizeImage(ctx, actor, id)
	if err != nil {
		return err
	}

	img.Name = name
	if err := s.images.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("rename: failed to update image: %w", err)
	}

	return nil
}

// Grayscale submits a grayscale conversion task.
func (s *Service) Grayscale(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error) {
	return s.submitImageTask(ctx, actor, id, task.KindGrayscaleImage, task.ImagePayload{ImageID: id})
}

// ColorToGray submits a color-to-gray conversion task.
func (s *Service) ColorToGray(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error) {
	return s.submitImageTask(ctx, actor, id, task.KindColorToGray, task.ImagePayload{ImageID: id})
}

// RemoveWatermark submits a watermark removal task.
func (s *Service) RemoveWatermark(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error) {
	return s.submitImageTask(ctx, actor, id, task.KindRemoveWatermark, task.ImagePayload{ImageID: id})
}

// RemoveBackground submits a background removal task.
func (s *Service) RemoveBackground(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error) {
	return s.submitImageTask(ctx, actor, id, task.KindRemoveBackground, task.ImagePayload{ImageID: id})
}

// Upscale submits an upscaling task after validating algorithm and scale.
func (s *Service) Upscale(ctx context.Context, actor *model.User, id uuid.UUID, algorithm string, scale int) (model.TaskID, error) {
	if algorithm != task.AlgorithmAI && algorithm != task.AlgorithmNearestNeighbour {
		return "", ErrInvalidAlgorithm
	}
	if scale != 2 && scale != 3 && scale != 4 {
		return "", ErrInvalidScale
	}

	return s.submitImageTask(ctx, actor, id, task.KindUpscaleImage, task.ImagePayload{
		ImageID:   id,
		Algorithm: algorithm,
		Params:    converter.Params{Scale: scale},
	})
}

// Resize submits a resize task.
func (s *Service) Resize(ctx context.Context, actor *model.User, id uuid.UUID, width, height int) (model.TaskID, error) {
	if width <= 0 || height <= 0 {
		return "", ErrInvalidDimensions
	}

	return s.submitImageTask(ctx, actor, id, task.KindResizeImage, task.ImagePayload{
		ImageID: id,
		Params:  converter.Params{Width: width, Height: height},
	})
}

// Rotate submits a rotation task.
func (s *Service) Rotate(ctx context.Context, actor *model.User, id uuid.UUID, angle int) (model.TaskID, error) {
	if angle == 0 || angle <= -360 || angle >= 360 {
		return "", ErrInvalidAngle
	}

	return s.submitImageTask(ctx, actor, id, task.KindRotateImage, task.ImagePayload{
		ImageID: id,
		Params:  converter.Params{Angle: angle},
	})
}

// Compress submits a JPEG re-encoding task.
func (s *Service) Compress(ctx context.Context, actor *model.User, id uuid.UUID, quality int) (model.TaskID, error) {
	if quality < 1 || quality > 100 {
		return "", ErrInvalidQuality
	}

	return s.submitImageTask(ctx, actor, id, task.KindCompressImage, task.ImagePayload{
		ImageID: id,
		Params:  converter.Params{Quality: quality},
	})
}

// Crop submits a cropping task.
func (s *Service) Crop(ctx context.Context, actor *model.User, id uuid.UUID, x, y, width, height int) (model.TaskID, error) {
	if x < 0 || y < 0 || width <= 0 || height <= 0 {
		return "", ErrInvalidCrop
	}

	return s.submitImageTask(ctx, actor, id, task.KindCropImage, task.ImagePayload{
		ImageID: id,
		Params:  converter.Params{X: x, Y: y, Width: width, Height: height},
	})
}

// Compare submits a comparison task over two images. Both must be accessible
// to the actor.
func (s *Service) Compare(ctx context.Context, actor *model.User, firstID, secondID uuid.UUID) (model.TaskID, error) {
	if firstID == secondID {
		return "", ErrSameImage
	}

	if _, err := s.authorizeImage(ctx, actor, firstID); err != nil {
		return "", err
	}
	if _, err := s.authorizeImage(ctx, actor, secondID); err != nil {
		return "", err
	}

	return s.dispatcher.Submit(ctx, task.KindCompareImages, task.ComparePayload{
		FirstImageID:  firstID,
		SecondImageID: secondID,
	})
}

// submitImageTask runs the shared authorize-then-submit tail of every
// single-image transformation. Validation must already have happened.
func (s *Service) submitImageTask(ctx context.Context, actor *model.User, id uuid.UUID, kind string, payload task.ImagePayload) (model.TaskID, error) {
	if _, err := s.authorizeImage(ctx, actor, id); err != nil {
		return "", err
	}

	taskID, err := s.dispatcher.Submit(ctx, kind, payload)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", kind, err)
	}

	return taskID, nil
}

// authorizeImage loads the image and checks that the actor owns it or holds
// a managing role over its owner.
func (s *Service) authorizeImage(ctx context.Context, actor *model.User, id uuid.UUID) (model.Image, error) {
	img, err := s.images.GetImage(ctx, id)
	if err != nil {
		return model.Image{}, err
	}

	permCtx := auth.Context{Subject: actor, ImageOwner: img.OwnerID}

	if img.OwnerID != actor.ID {
		owner, err := s.users.GetUser(ctx, img.OwnerID)
		if err != nil {
			return model.Image{}, fmt.Errorf("authorize: failed to load image owner: %w", err)
		}
		permCtx.Target = &owner
	}

	perm := auth.AnyOf(auth.OwnsImage{}, auth.CanManageSubordinate{Hierarchy: s.hierarchy})
	if err := auth.Authorize(perm, permCtx); err != nil {
		return model.Image{}, ErrNotOwner
	}

	return img, nil
}
