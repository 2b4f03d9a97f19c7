package converter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIUpscalerSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "2", r.URL.Query().Get("scale"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("input-bytes"), body)

		w.Write([]byte("upscaled-bytes"))
	}))
	defer srv.Close()

	u := NewAIUpscaler(srv.URL, time.Second)

	out, err := u.Convert(context.Background(), []byte("input-bytes"), Params{Scale: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte("upscaled-bytes"), out)
}

func TestAIUpscalerServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewAIUpscaler(srv.URL, time.Second)

	_, err := u.Convert(context.Background(), []byte("x"), Params{Scale: 2})
	assert.ErrorIs(t, err, ErrUnavailable, "5xx responses are transient")
}

func TestAIUpscalerRejectedInput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	u := NewAIUpscaler(srv.URL, time.Second)

	_, err := u.Convert(context.Background(), []byte("x"), Params{Scale: 2})
	assert.ErrorIs(t, err, ErrBadInput, "4xx responses are deterministic")
}

func TestAIUpscalerUnreachableBackend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // shut down before calling

	u := NewAIUpscaler(srv.URL, time.Second)

	_, err := u.Convert(context.Background(), []byte("x"), Params{Scale: 2})
	assert.ErrorIs(t, err, ErrUnavailable)
}
