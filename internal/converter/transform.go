package converter

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// resizeConverter resizes an image to the exact width and height given in params.
type resizeConverter struct{}

func (resizeConverter) Convert(_ context.Context, src []byte, p Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, p.Width, p.Height, imaging.Lanczos)

	return encodeJPEG(resized, defaultJPEGQuality)
}

// rotateConverter rotates an image counter-clockwise by the angle in params.
type rotateConverter struct{}

func (rotateConverter) Convert(_ context.Context, src []byte, p Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	rotated := imaging.Rotate(img, float64(p.Angle), color.Transparent)

	return encodePNG(rotated)
}

// compressConverter re-encodes an image as JPEG with the requested quality.
type compressConverter struct{}

func (compressConverter) Convert(_ context.Context, src []byte, p Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	return encodeJPEG(img, p.Quality)
}

// cropConverter cuts the rectangle (x, y, x+width, y+height) out of an image.
type cropConverter struct{}

func (cropConverter) Convert(_ context.Context, src []byte, p Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rect := image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
	if !rect.In(bounds) {
		return nil, fmt.Errorf("%w: crop rect %v outside image bounds %v", ErrBadInput, rect, bounds)
	}

	cropped := imaging.Crop(img, rect)

	return encodeJPEG(cropped, defaultJPEGQuality)
}
