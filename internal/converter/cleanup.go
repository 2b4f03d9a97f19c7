package converter

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// watermarkRemover overpaints the bottom-right corner, where watermarks are
// conventionally stamped, with the dominant color sampled around the region.
type watermarkRemover struct{}

// Fraction of the image covered by the patch, and the sampling inset around it.
const (
	watermarkRegionFrac = 0.25
	sampleInset         = 4
)

func (watermarkRemover) Convert(_ context.Context, src []byte, _ Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	regionW := int(float64(w) * watermarkRegionFrac)
	regionH := int(float64(h) * watermarkRegionFrac)
	x0 := bounds.Max.X - regionW
	y0 := bounds.Max.Y - regionH

	fill := averageColor(img, image.Rect(
		max(bounds.Min.X, x0-sampleInset), max(bounds.Min.Y, y0-sampleInset),
		x0, y0,
	))

	dc := gg.NewContextForImage(img)
	dc.SetColor(fill)
	dc.DrawRectangle(float64(x0-bounds.Min.X), float64(y0-bounds.Min.Y), float64(regionW), float64(regionH))
	dc.Fill()

	return encodeJPEG(dc.Image(), defaultJPEGQuality)
}

// backgroundRemover makes pixels similar to the border color transparent.
// The border color approximates the background; output is PNG to keep alpha.
type backgroundRemover struct{}

// Euclidean RGB distance below which a pixel counts as background.
const backgroundTolerance = 48.0

func (backgroundRemover) Convert(_ context.Context, src []byte, _ Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	bg := borderColor(img)

	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if colorDistance(c, bg) < backgroundTolerance {
				c.A = 0
			}
			out.SetNRGBA(x, y, c)
		}
	}

	return encodePNG(out)
}

// borderColor averages the one-pixel frame of the image.
func borderColor(img image.Image) color.NRGBA {
	bounds := img.Bounds()
	frame := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+1)
	top := averageColor(img, frame)
	bottom := averageColor(img, image.Rect(bounds.Min.X, bounds.Max.Y-1, bounds.Max.X, bounds.Max.Y))

	return color.NRGBA{
		R: uint8((int(top.R) + int(bottom.R)) / 2),
		G: uint8((int(top.G) + int(bottom.G)) / 2),
		B: uint8((int(top.B) + int(bottom.B)) / 2),
		A: 255,
	}
}

func averageColor(img image.Image, rect image.Rectangle) color.NRGBA {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return color.NRGBA{A: 255}
	}

	var r, g, b, n uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r += uint64(c.R)
			g += uint64(c.G)
			b += uint64(c.B)
			n++
		}
	}

	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 255}
}

func colorDistance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
