package converter

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/pix-erase/internal/model"
)

// histogramComparer computes similarity scores between two images:
// correlation, chi-square, intersection and Bhattacharyya distance over
// normalized 256-bin grayscale histograms, plus MSE, PSNR and SSIM over the
// pixels. The second image is resampled to the first image's dimensions so
// the pixel metrics are defined for inputs of different sizes.
type histogramComparer struct{}

const histogramBins = 256

func (histogramComparer) Compare(_ context.Context, first, second []byte) (model.ComparisonScores, error) {
	a, err := decode(first)
	if err != nil {
		return model.ComparisonScores{}, err
	}
	b, err := decode(second)
	if err != nil {
		return model.ComparisonScores{}, err
	}

	grayA := imaging.Grayscale(a)
	grayB := imaging.Grayscale(b)

	if !grayA.Bounds().Eq(grayB.Bounds()) {
		grayB = imaging.Resize(grayB, grayA.Bounds().Dx(), grayA.Bounds().Dy(), imaging.Lanczos)
	}

	histA := normalizedHistogram(grayA)
	histB := normalizedHistogram(grayB)

	mse := meanSquaredError(grayA, grayB)

	return model.ComparisonScores{
		Correlation:   correlation(histA, histB),
		ChiSquare:     chiSquare(histA, histB),
		Intersection:  intersection(histA, histB),
		Bhattacharyya: bhattacharyya(histA, histB),
		MSE:           mse,
		PSNR:          psnr(mse),
		SSIM:          ssim(grayA, grayB),
	}, nil
}

// normalizedHistogram builds a 256-bin luminance histogram scaled to unit sum.
func normalizedHistogram(img image.Image) []float64 {
	hist := make([]float64, histogramBins)
	bounds := img.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[grayValue(img, x, y)]++
		}
	}

	total := float64(bounds.Dx() * bounds.Dy())
	for i := range hist {
		hist[i] /= total
	}

	return hist
}

func grayValue(img image.Image, x, y int) uint8 {
	return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
}

func correlation(a, b []float64) float64 {
	meanA, meanB := mean(a), mean(b)

	var num, denA, denB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		denA += da * da
		denB += db * db
	}

	den := math.Sqrt(denA * denB)
	if den == 0 {
		return 1
	}
	return num / den
}

func chiSquare(a, b []float64) float64 {
	var sum float64
	for i := range a {
		if a[i] > 0 {
			d := a[i] - b[i]
			sum += d * d / a[i]
		}
	}
	return sum
}

func intersection(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Min(a[i], b[i])
	}
	return sum
}

func bhattacharyya(a, b []float64) float64 {
	meanA, meanB := mean(a), mean(b)

	var bc float64
	for i := range a {
		bc += math.Sqrt(a[i] * b[i])
	}

	n := float64(len(a))
	den := math.Sqrt(meanA * meanB * n * n)
	if den == 0 {
		return 0
	}

	v := 1 - bc/den
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

func meanSquaredError(a, b image.Image) float64 {
	bounds := a.Bounds()

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := float64(grayValue(a, x, y)) - float64(grayValue(b, x, y))
			sum += d * d
		}
	}

	return sum / float64(bounds.Dx()*bounds.Dy())
}

// psnr converts MSE into peak signal-to-noise ratio in dB.
// Identical images have zero MSE and infinite PSNR.
func psnr(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(255/math.Sqrt(mse))
}

// ssim computes a global structural similarity index over the luminance
// channel with the standard stabilizing constants.
func ssim(a, b image.Image) float64 {
	const (
		c1 = (0.01 * 255) * (0.01 * 255)
		c2 = (0.03 * 255) * (0.03 * 255)
	)

	bounds := a.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())

	var sumA, sumB float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sumA += float64(grayValue(a, x, y))
			sumB += float64(grayValue(b, x, y))
		}
	}
	muA, muB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			da := float64(grayValue(a, x, y)) - muA
			db := float64(grayValue(b, x, y)) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	return ((2*muA*muB + c1) * (2*cov + c2)) /
		((muA*muA + muB*muB + c1) * (varA + varB + c2))
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
