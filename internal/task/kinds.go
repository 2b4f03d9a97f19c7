// Package task contains the dispatcher that hands units of work to the queue
// and the status store that makes their lifecycle observable by task id.
package task

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/aliskhannn/pix-erase/internal/converter"
	"github.com/aliskhannn/pix-erase/internal/model"
)

// Task kinds. The kind is the prefix of every task id and is part of the
// public polling contract, so these names never change.
const (
	KindGrayscaleImage   = "grayscale_image"
	KindColorToGray      = "color_to_gray_image"
	KindRemoveWatermark  = "remove_watermark"
	KindRemoveBackground = "remove_background"
	KindUpscaleImage     = "upscale_image"
	KindResizeImage      = "resize_image"
	KindRotateImage      = "rotate_image"
	KindCompressImage    = "compress_image"
	KindCropImage        = "crop_image"
	KindCompareImages    = "compare_images"
	KindAnalyzeDomain    = "analyze_domain"
)

// Upscale algorithm names accepted by the upscale_image kind.
const (
	AlgorithmAI               = "AI"
	AlgorithmNearestNeighbour = "NearestNeighbour"
)

// ImagePayload is the unit of work for single-image transformations.
type ImagePayload struct {
	ImageID   uuid.UUID        `json:"image_id"`
	Algorithm string           `json:"algorithm,omitempty"` // upscale_image only
	Params    converter.Params `json:"params"`
}

// ComparePayload is the unit of work for image comparison.
type ComparePayload struct {
	FirstImageID  uuid.UUID `json:"first_image_id"`
	SecondImageID uuid.UUID `json:"second_image_id"`
}

// DomainPayload is the unit of work for internet-domain analysis.
type DomainPayload struct {
	Domain string `json:"domain"`
}

// Envelope is the message produced to the queue for every task.
// Attempt counts executions so far; the executor bumps it on retries.
type Envelope struct {
	ID      model.TaskID    `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}
