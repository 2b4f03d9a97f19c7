package converter

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeTestImage renders a horizontal gradient and returns it as PNG bytes.
func encodeTestImage(t *testing.T, w, h int, shift uint8) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x*255/w) + shift
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, imaging.Encode(buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestCompareIdenticalImages(t *testing.T) {
	t.Parallel()

	data := encodeTestImage(t, 32, 32, 0)

	scores, err := histogramComparer{}.Compare(context.Background(), data, data)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, scores.Correlation, 1e-9)
	assert.InDelta(t, 0.0, scores.ChiSquare, 1e-9)
	assert.InDelta(t, 1.0, scores.Intersection, 1e-9)
	assert.InDelta(t, 0.0, scores.Bhattacharyya, 1e-6)
	assert.Zero(t, scores.MSE)
	assert.True(t, math.IsInf(scores.PSNR, 1), "identical images have infinite PSNR")
	assert.InDelta(t, 1.0, scores.SSIM, 1e-6)
}

func TestCompareDifferentImages(t *testing.T) {
	t.Parallel()

	first := encodeTestImage(t, 32, 32, 0)
	second := encodeTestImage(t, 32, 32, 100)

	scores, err := histogramComparer{}.Compare(context.Background(), first, second)
	require.NoError(t, err)

	assert.Greater(t, scores.MSE, 0.0)
	assert.False(t, math.IsInf(scores.PSNR, 1))
	assert.Less(t, scores.Intersection, 1.0)
	assert.Less(t, scores.SSIM, 1.0)
}

func TestCompareDifferentSizes(t *testing.T) {
	t.Parallel()

	first := encodeTestImage(t, 32, 32, 0)
	second := encodeTestImage(t, 64, 48, 0)

	// The second image is resampled to the first image's size, so the pixel
	// metrics stay defined.
	scores, err := histogramComparer{}.Compare(context.Background(), first, second)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(scores.MSE))
	assert.False(t, math.IsNaN(scores.SSIM))
}

func TestCompareBadInput(t *testing.T) {
	t.Parallel()

	good := encodeTestImage(t, 8, 8, 0)

	_, err := histogramComparer{}.Compare(context.Background(), []byte("not an image"), good)
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = histogramComparer{}.Compare(context.Background(), good, nil)
	assert.ErrorIs(t, err, ErrBadInput)
}
