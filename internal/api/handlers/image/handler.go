package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/api/respond"
	"github.com/aliskhannn/pix-erase/internal/middleware"
	"github.com/aliskhannn/pix-erase/internal/model"
	imagerepo "github.com/aliskhannn/pix-erase/internal/repository/image"
	imagesvc "github.com/aliskhannn/pix-erase/internal/service/image"
)

// service defines the image operations behind the endpoints.
type service interface {
	Create(ctx context.Context, actor *model.User, name string, data []byte) (model.Image, error)
	Read(ctx context.Context, actor *model.User, id uuid.UUID) (model.Image, io.ReadCloser, error)
	Exif(ctx context.Context, actor *model.User, id uuid.UUID) (map[string]string, error)
	Delete(ctx context.Context, actor *model.User, id uuid.UUID) error
	ChangeName(ctx context.Context, actor *model.User, id uuid.UUID, name string) error

	Grayscale(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error)
	ColorToGray(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error)
	RemoveWatermark(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error)
	RemoveBackground(ctx context.Context, actor *model.User, id uuid.UUID) (model.TaskID, error)
	Upscale(ctx context.Context, actor *model.User, id uuid.UUID, algorithm string, scale int) (model.TaskID, error)
	Resize(ctx context.Context, actor *model.User, id uuid.UUID, width, height int) (model.TaskID, error)
	Rotate(ctx context.Context, actor *model.User, id uuid.UUID, angle int) (model.TaskID, error)
	Compress(ctx context.Context, actor *model.User, id uuid.UUID, quality int) (model.TaskID, error)
	Crop(ctx context.Context, actor *model.User, id uuid.UUID, x, y, width, height int) (model.TaskID, error)
	Compare(ctx context.Context, actor *model.User, firstID, secondID uuid.UUID) (model.TaskID, error)
}

// Handler provides HTTP handlers for image endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// maxUploadBytes caps in-memory multipart parsing.
const maxUploadBytes = 10 << 20

// Upload handles the HTTP request for uploading an image.
func (h *Handler) Upload(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to upload the file")
		respond.Fail(c, http.StatusBadRequest, errors.New("failed to retrieve the file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, errors.New("failed to read the file"))
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}

	img, err := h.service.Create(c.Request.Context(), actor, name, data)
	if err != nil {
		failImageOp(c, err, "failed to save the image")
		return
	}

	respond.Created(c, map[string]interface{}{
		"id":     img.ID,
		"name":   img.Name,
		"width":  img.Width,
		"height": img.Height,
	})
}

// Get serves the actual image bytes for a given image ID.
func (h *Handler) Get(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	img, reader, err := h.service.Read(c.Request.Context(), actor, id)
	if err != nil {
		failImageOp(c, err, "failed to get image")
		return
	}
	defer reader.Close()

	// Disable browser caching to always fetch the latest image.
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	contentType := mime.TypeByExtension(filepath.Ext(img.Path))
	if contentType == "" {
		contentType = "image/jpeg"
	}
	respond.Image(c, http.StatusOK, contentType, reader)
}

// GetMeta returns metadata about the image without serving the file itself.
func (h *Handler) GetMeta(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	img, reader, err := h.service.Read(c.Request.Context(), actor, id)
	if err != nil {
		failImageOp(c, err, "failed to get image")
		return
	}
	reader.Close()

	respond.OK(c, img)
}

// Exif returns the metadata fields embedded in the image file.
func (h *Handler) Exif(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	fields, err := h.service.Exif(c.Request.Context(), actor, id)
	if err != nil {
		failImageOp(c, err, "failed to read exif metadata")
		return
	}

	respond.OK(c, fields)
}

// Delete removes an image by ID.
func (h *Handler) Delete(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		failImageOp(c, err, "failed to delete image")
		return
	}

	c.Status(http.StatusNoContent)
}

// Rename changes the image name.
func (h *Handler) Rename(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	if err := h.service.ChangeName(c.Request.Context(), actor, id, req.Name); err != nil {
		failImageOp(c, err, "failed to rename image")
		return
	}

	c.Status(http.StatusNoContent)
}

// Grayscale queues a grayscale conversion.
func (h *Handler) Grayscale(c *ginext.Context) {
	h.submit(c, h.service.Grayscale)
}

// ColorToGray queues a color-to-gray conversion.
func (h *Handler) ColorToGray(c *ginext.Context) {
	h.submit(c, h.service.ColorToGray)
}

// RemoveWatermark queues watermark removal.
func (h *Handler) RemoveWatermark(c *ginext.Context) {
	h.submit(c, h.service.RemoveWatermark)
}

// RemoveBackground queues background removal.
func (h *Handler) RemoveBackground(c *ginext.Context) {
	h.submit(c, h.service.RemoveBackground)
}

// UpscaleRequest selects the upscaling algorithm and factor.
type UpscaleRequest struct {
	Algorithm string `json:"algorithm" binding:"required"`
	Scale     int    `json:"scale" binding:"required"`
}

// Upscale queues an upscaling task.
func (h *Handler) Upscale(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req UpscaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Upscale(c.Request.Context(), actor, id, req.Algorithm, req.Scale)
	if err != nil {
		failImageOp(c, err, "failed to queue task")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// Resize queues a resize task.
func (h *Handler) Resize(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Width  int `json:"width" binding:"required"`
		Height int `json:"height" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Resize(c.Request.Context(), actor, id, req.Width, req.Height)
	if err != nil {
		failImageOp(c, err, "failed to queue task")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// Rotate queues a rotation task.
func (h *Handler) Rotate(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Angle int `json:"angle" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Rotate(c.Request.Context(), actor, id, req.Angle)
	if err != nil {
		failImageOp(c, err, "failed to queue task")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// Compress queues a JPEG re-encoding task.
func (h *Handler) Compress(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Quality int `json:"quality" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Compress(c.Request.Context(), actor, id, req.Quality)
	if err != nil {
		failImageOp(c, err, "failed to queue task")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// Crop queues a cropping task.
func (h *Handler) Crop(c *ginext.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width" binding:"required"`
		Height int `json:"height" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Crop(c.Request.Context(), actor, id, req.X, req.Y, req.Width, req.Height)
	if err != nil {
		failImageOp(c, err, "failed to queue task")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// CompareRequest names the two images to compare.
type CompareRequest struct {
	FirstID  uuid.UUID `json:"first_id" binding:"required"`
	SecondID uuid.UUID `json:"second_id" binding:"required"`
}

// Compare queues a comparison of two images.
func (h *Handler) Compare(c *ginext.Context) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	taskID, err := h.service.Compare(c.Request.Context(), actor, req.FirstID, req.SecondID)
	if err != nil {
		failImageOp(c, err, "failed to queue comparison")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// submit runs a transformation that takes no parameters beyond the image id.
func (h *Handler) submit(c *ginext.Context, op func(context.Context, *model.User, uuid.UUID) (model.TaskID, error)) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	taskID, err := op(c.Request.Context(), actor, id)
	if err != nil {
		failImageOp(c, err, "failed to queue task")
		return
	}

	respond.Accepted(c, map[string]interface{}{"task_id": taskID})
}

// actorAndID pulls the authenticated user and the image id path parameter.
func (h *Handler) actorAndID(c *ginext.Context) (*model.User, uuid.UUID, bool) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		respond.Fail(c, http.StatusUnauthorized, errors.New("not authenticated"))
		return nil, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return nil, uuid.Nil, false
	}

	return actor, id, true
}

// failImageOp maps image service errors onto HTTP statuses.
func failImageOp(c *ginext.Context, err error, fallback string) {
	switch {
	case errors.Is(err, imagesvc.ErrValidation):
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, imagesvc.ErrNotOwner):
		respond.Fail(c, http.StatusForbidden, err)
	case errors.Is(err, imagerepo.ErrImageNotFound):
		respond.Fail(c, http.StatusNotFound, errors.New("image not found"))
	case errors.Is(err, imagesvc.ErrNoExif):
		respond.Fail(c, http.StatusNotFound, err)
	default:
		zlog.Logger.Err(err).Msg(fallback)
		respond.Fail(c, http.StatusInternalServerError, errors.New(fallback))
	}
}
