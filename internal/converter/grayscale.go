package converter

import (
	"context"

	"github.com/disintegration/imaging"
)

// grayscaleConverter converts an image to grayscale. It serves both the
// grayscale and color_to_gray capabilities: the pixel operation is identical,
// the two kinds differ only in how clients name them.
type grayscaleConverter struct{}

func (grayscaleConverter) Convert(_ context.Context, src []byte, _ Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	gray := imaging.Grayscale(img)

	return encodeJPEG(gray, defaultJPEGQuality)
}
