package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"golang.org/x/image/draw"
)

// nearestNeighbourUpscaler scales an image up by an integer factor using
// nearest-neighbour sampling. Fast, deterministic, fully local.
type nearestNeighbourUpscaler struct{}

func (nearestNeighbourUpscaler) Convert(_ context.Context, src []byte, p Params) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*p.Scale, bounds.Dy()*p.Scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	return encodeJPEG(dst, defaultJPEGQuality)
}

// AIUpscaler calls an external model-serving backend over HTTP. The backend
// receives the raw image bytes and the scale factor and answers with the
// upscaled bytes. Timeouts and 5xx responses are transient.
type AIUpscaler struct {
	endpoint string
	client   *http.Client
}

// NewAIUpscaler creates an AIUpscaler for the given backend endpoint.
// The timeout bounds a single upscale call.
func NewAIUpscaler(endpoint string, timeout time.Duration) *AIUpscaler {
	return &AIUpscaler{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (u *AIUpscaler) Convert(ctx context.Context, src []byte, p Params) ([]byte, error) {
	url := fmt.Sprintf("%s?scale=%d", u.endpoint, p.Scale)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("build upscale request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: upscale backend: %v", ErrUnavailable, err)
		}
		// Connection-level failures are transient as well.
		return nil, fmt.Errorf("%w: upscale backend: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: upscale backend returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: upscale backend rejected input with %d", ErrBadInput, resp.StatusCode)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read upscale response: %v", ErrUnavailable, err)
	}

	return out, nil
}
