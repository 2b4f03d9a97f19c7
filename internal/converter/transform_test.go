package converter

import (
	"bytes"
	"context"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeResult parses converter output and returns its dimensions.
func decodeResult(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err, "converter output must decode")
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestGrayscaleConverter(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 16, 16, 0)

	out, err := grayscaleConverter{}.Convert(context.Background(), src, Params{})
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			assert.Equal(t, r, g, "pixel (%d,%d) not gray", x, y)
			assert.Equal(t, g, b, "pixel (%d,%d) not gray", x, y)
		}
	}
}

func TestResizeConverter(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 40, 30, 0)

	out, err := resizeConverter{}.Convert(context.Background(), src, Params{Width: 20, Height: 10})
	require.NoError(t, err)

	w, h := decodeResult(t, out)
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)
}

func TestRotateConverterQuarterTurn(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 40, 20, 0)

	out, err := rotateConverter{}.Convert(context.Background(), src, Params{Angle: 90})
	require.NoError(t, err)

	w, h := decodeResult(t, out)
	assert.Equal(t, 20, w, "90 degree rotation swaps dimensions")
	assert.Equal(t, 40, h)
}

func TestCompressConverter(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 64, 64, 0)

	low, err := compressConverter{}.Convert(context.Background(), src, Params{Quality: 10})
	require.NoError(t, err)
	high, err := compressConverter{}.Convert(context.Background(), src, Params{Quality: 95})
	require.NoError(t, err)

	assert.Less(t, len(low), len(high), "lower quality must yield smaller output")
}

func TestCropConverter(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 40, 40, 0)

	out, err := cropConverter{}.Convert(context.Background(), src, Params{X: 10, Y: 5, Width: 20, Height: 25})
	require.NoError(t, err)

	w, h := decodeResult(t, out)
	assert.Equal(t, 20, w)
	assert.Equal(t, 25, h)
}

func TestCropConverterOutOfBounds(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 20, 20, 0)

	_, err := cropConverter{}.Convert(context.Background(), src, Params{X: 10, Y: 10, Width: 20, Height: 20})
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestNearestNeighbourUpscaler(t *testing.T) {
	t.Parallel()

	src := encodeTestImage(t, 10, 8, 0)

	out, err := nearestNeighbourUpscaler{}.Convert(context.Background(), src, Params{Scale: 3})
	require.NoError(t, err)

	w, h := decodeResult(t, out)
	assert.Equal(t, 30, w)
	assert.Equal(t, 24, h)
}

func TestConvertersRejectGarbage(t *testing.T) {
	t.Parallel()

	garbage := []byte("definitely not an image")

	converters := []Converter{
		grayscaleConverter{},
		resizeConverter{},
		rotateConverter{},
		compressConverter{},
		cropConverter{},
		nearestNeighbourUpscaler{},
		watermarkRemover{},
		backgroundRemover{},
	}

	for _, conv := range converters {
		_, err := conv.Convert(context.Background(), garbage, Params{Scale: 2, Width: 1, Height: 1, Quality: 50})
		assert.ErrorIs(t, err, ErrBadInput, "%T", conv)
	}
}
