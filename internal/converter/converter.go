// Package converter holds the pluggable image converters and the capability
// registry used by the task executor to dispatch work.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/pix-erase/internal/model"
)

// Capability enumerates the transformation kinds a converter can implement.
// Every capability must have exactly one converter registered at startup.
type Capability string

const (
	Grayscale               Capability = "grayscale"
	ColorToGray             Capability = "color_to_gray"
	RemoveWatermark         Capability = "remove_watermark"
	RemoveBackground        Capability = "remove_background"
	AIUpscale               Capability = "ai_upscale"
	NearestNeighbourUpscale Capability = "nearest_neighbour_upscale"
	Compare                 Capability = "compare"
	Resize                  Capability = "resize"
	Rotate                  Capability = "rotate"
	Compress                Capability = "compress"
	Crop                    Capability = "crop"
)

// Capabilities lists every capability the registry must bind.
func Capabilities() []Capability {
	return []Capability{
		Grayscale, ColorToGray, RemoveWatermark, RemoveBackground,
		AIUpscale, NearestNeighbourUpscale, Compare,
		Resize, Rotate, Compress, Crop,
	}
}

var (
	// ErrBadInput marks deterministic failures: the input can never be
	// processed, so retrying is pointless.
	ErrBadInput = errors.New("converter: bad input")

	// ErrUnavailable marks transient infrastructure failures (timeouts,
	// unreachable backends) that are eligible for retry.
	ErrUnavailable = errors.New("converter: backend unavailable")
)

// Params carries the kind-specific parameters of a transformation.
// Validation happens in the command handlers before a task is created;
// converters may assume the values are in range.
type Params struct {
	Scale   int `json:"scale,omitempty"`
	Angle   int `json:"angle,omitempty"`
	Quality int `json:"quality,omitempty"`
	Width   int `json:"width,omitempty"`
	Height  int `json:"height,omitempty"`
	X       int `json:"x,omitempty"`
	Y       int `json:"y,omitempty"`
}

// Converter transforms image bytes. Implementations are stateless and safe
// for concurrent reuse across workers.
type Converter interface {
	Convert(ctx context.Context, src []byte, p Params) ([]byte, error)
}

// Comparer computes similarity scores between two images.
type Comparer interface {
	Compare(ctx context.Context, first, second []byte) (model.ComparisonScores, error)
}

// decode parses image bytes, mapping decode failures to ErrBadInput.
func decode(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrBadInput, err)
	}
	return img, nil
}

// encodeJPEG serializes an image as JPEG with the given quality (1-100).
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// encodePNG serializes an image as PNG, preserving transparency.
func encodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

const defaultJPEGQuality = 90
