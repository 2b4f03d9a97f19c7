// Package worker executes dequeued tasks: it resolves the converter for the
// task's kind, runs it under a timeout, retries transient failures with
// backoff and records every lifecycle transition in the status store.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/converter"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/task"
)

// imageRepo provides image metadata access for the executor.
type imageRepo interface {
	GetImage(ctx context.Context, id uuid.UUID) (model.Image, error)
	UpdateImage(ctx context.Context, img model.Image) error
}

// fileStorage loads and saves image bytes.
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// domainAnalyzer produces a report for an internet domain.
type domainAnalyzer interface {
	Analyze(ctx context.Context, domain string) (model.DomainReport, error)
}

// Config bounds execution: retry budget, backoff schedule and per-invocation
// wall-clock limits. KindTimeouts overrides DefaultTimeout per task kind.
type Config struct {
	MaxAttempts    int
	RetryDelay     time.Duration
	Backoff        float64
	DefaultTimeout time.Duration
	KindTimeouts   map[string]time.Duration
}

// Executor runs one task at a time. It is stateless between tasks, so a pool
// of executors may share the queue; the queue's delivery guarantee ensures no
// two workers claim the same task.
type Executor struct {
	store    task.Store
	registry *converter.Registry
	images   imageRepo
	files    fileStorage
	analyzer domainAnalyzer
	cfg      Config
}

// NewExecutor creates an Executor.
func NewExecutor(
	store task.Store,
	registry *converter.Registry,
	images imageRepo,
	files fileStorage,
	analyzer domainAnalyzer,
	cfg Config,
) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 15 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2.0
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = time.Minute
	}

	return &Executor{
		store:    store,
		registry: registry,
		images:   images,
		files:    files,
		analyzer: analyzer,
		cfg:      cfg,
	}
}

// Execute drives a single task through its lifecycle. Errors are never
// propagated to the submitter: every outcome ends up in the status store.
// The returned error only signals the queue whether redelivery is needed.
func (e *Executor) Execute(ctx context.Context, env task.Envelope) error {
	current, err := e.store.Get(ctx, env.ID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			// Record expired or was never created; nothing to report against.
			zlog.Logger.Warn().Str("task_id", string(env.ID)).Msg("dropping task without a status record")
			return nil
		}
		return err
	}

	// Redelivered after a terminal outcome: terminal states are immutable.
	if current.Status.Terminal() {
		return nil
	}

	switch current.Status {
	case model.StatusQueued:
		if err := e.store.Transition(ctx, env.ID, model.StatusStarted, "picked up by worker"); err != nil {
			return err
		}
	case model.StatusProcessing:
		// Redelivered after a crash mid-processing: step through retrying so
		// the state machine stays monotonic.
		if err := e.store.Transition(ctx, env.ID, model.StatusRetrying, "recovered after interruption"); err != nil {
			return err
		}
	}

	e.run(ctx, env)
	return nil
}

// run owns the processing → {success|failure|retrying} loop.
func (e *Executor) run(ctx context.Context, env task.Envelope) {
	delay := e.cfg.RetryDelay

	for attempt := env.Attempt; ; attempt++ {
		if err := e.store.Transition(ctx, env.ID, model.StatusProcessing,
			fmt.Sprintf("processing, attempt %d", attempt)); err != nil {
			zlog.Logger.Err(err).Str("task_id", string(env.ID)).Msg("failed to record processing status")
			return
		}

		err := e.dispatch(ctx, env)
		if err == nil {
			return
		}

		if !transient(err) {
			e.fail(ctx, env.ID, err)
			return
		}

		if attempt >= e.cfg.MaxAttempts {
			e.fail(ctx, env.ID, fmt.Errorf("retry budget exhausted after %d attempts: %w", attempt, err))
			return
		}

		desc := fmt.Sprintf("attempt %d failed (%v), retrying in %s", attempt, err, delay)
		if terr := e.store.Transition(ctx, env.ID, model.StatusRetrying, desc); terr != nil {
			zlog.Logger.Err(terr).Str("task_id", string(env.ID)).Msg("failed to record retrying status")
			return
		}

		zlog.Logger.Warn().
			Str("task_id", string(env.ID)).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("transient failure, will retry")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * e.cfg.Backoff)
	}
}

func (e *Executor) fail(ctx context.Context, id model.TaskID, cause error) {
	if err := e.store.Transition(ctx, id, model.StatusFailure, cause.Error()); err != nil {
		zlog.Logger.Err(err).Str("task_id", string(id)).Msg("failed to record failure status")
	}

	zlog.Logger.Error().
		Str("task_id", string(id)).
		Str("cause", cause.Error()).
		Msg("task failed")
}

// transient reports whether the error is a retryable infrastructure failure.
// Missing converter bindings and bad input are deterministic and final.
func transient(err error) bool {
	if errors.Is(err, converter.ErrNotRegistered) || errors.Is(err, converter.ErrBadInput) {
		return false
	}
	if errors.Is(err, converter.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// dispatch routes the envelope by kind and runs it under the kind's timeout.
func (e *Executor) dispatch(ctx context.Context, env task.Envelope) error {
	timeout := e.cfg.DefaultTimeout
	if t, ok := e.cfg.KindTimeouts[env.Kind]; ok {
		timeout = t
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch env.Kind {
	case task.KindCompareImages:
		return e.compare(ctx, env)
	case task.KindAnalyzeDomain:
		return e.analyzeDomain(ctx, env)
	default:
		return e.convertImage(ctx, env)
	}
}

// capabilityFor maps a task kind (plus payload) onto a registry capability.
func capabilityFor(kind string, p task.ImagePayload) (converter.Capability, error) {
	switch kind {
	case task.KindGrayscaleImage:
		return converter.Grayscale, nil
	case task.KindColorToGray:
		return converter.ColorToGray, nil
	case task.KindRemoveWatermark:
		return converter.RemoveWatermark, nil
	case task.KindRemoveBackground:
		return converter.RemoveBackground, nil
	case task.KindResizeImage:
		return converter.Resize, nil
	case task.KindRotateImage:
		return converter.Rotate, nil
	case task.KindCompressImage:
		return converter.Compress, nil
	case task.KindCropImage:
		return converter.Crop, nil
	case task.KindUpscaleImage:
		if p.Algorithm == task.AlgorithmAI {
			return converter.AIUpscale, nil
		}
		return converter.NearestNeighbourUpscale, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", converter.ErrNotRegistered, kind)
	}
}

func (e *Executor) convertImage(ctx context.Context, env task.Envelope) error {
	var payload task.ImagePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", converter.ErrBadInput, err)
	}

	capability, err := capabilityFor(env.Kind, payload)
	if err != nil {
		return err
	}

	conv, err := e.registry.Resolve(capability)
	if err != nil {
		return err
	}

	img, err := e.images.GetImage(ctx, payload.ImageID)
	if err != nil {
		return fmt.Errorf("%w: image %s: %v", converter.ErrBadInput, payload.ImageID, err)
	}

	src, err := e.loadBytes(ctx, img.Path)
	if err != nil {
		return err
	}

	out, err := conv.Convert(ctx, src, payload.Params)
	if err != nil {
		return err
	}

	dst, err := e.files.Save(ctx, "processed", string(env.ID)+path.Ext(img.Path), bytes.NewReader(out))
	if err != nil {
		return fmt.Errorf("%w: save result: %v", converter.ErrUnavailable, err)
	}

	img.Path = dst
	// The declared dimensions feed the comparison flags, so they must match
	// the bytes exactly; rotation by a non-right angle, for example, expands
	// the canvas to the rotated bounding box.
	if cfg, _, derr := image.DecodeConfig(bytes.NewReader(out)); derr == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	img.UpdatedAt = time.Now().UTC()

	if err := e.images.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("%w: update image record: %v", converter.ErrUnavailable, err)
	}

	result, err := json.Marshal(map[string]string{"image_id": img.ID.String(), "path": dst})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := e.store.SetResult(ctx, env.ID, result); err != nil {
		return fmt.Errorf("%w: store result: %v", converter.ErrUnavailable, err)
	}

	return e.store.Transition(ctx, env.ID, model.StatusSuccess,
		fmt.Sprintf("image %s processed", img.ID))
}

func (e *Executor) compare(ctx context.Context, env task.Envelope) error {
	var payload task.ComparePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", converter.ErrBadInput, err)
	}

	comparer, err := e.registry.Comparer()
	if err != nil {
		return err
	}

	first, err := e.images.GetImage(ctx, payload.FirstImageID)
	if err != nil {
		return fmt.Errorf("%w: image %s: %v", converter.ErrBadInput, payload.FirstImageID, err)
	}
	second, err := e.images.GetImage(ctx, payload.SecondImageID)
	if err != nil {
		return fmt.Errorf("%w: image %s: %v", converter.ErrBadInput, payload.SecondImageID, err)
	}

	firstBytes, err := e.loadBytes(ctx, first.Path)
	if err != nil {
		return err
	}
	secondBytes, err := e.loadBytes(ctx, second.Path)
	if err != nil {
		return err
	}

	scores, err := comparer.Compare(ctx, firstBytes, secondBytes)
	if err != nil {
		return err
	}

	comparison := model.ComparisonResult{
		FirstImageID:    first.ID,
		SecondImageID:   second.ID,
		Scores:          scores,
		DifferentNames:  first.Name != second.Name,
		DifferentWidth:  first.Width != second.Width,
		DifferentHeight: first.Height != second.Height,
	}

	result, err := json.Marshal(comparison)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := e.store.SetResult(ctx, env.ID, result); err != nil {
		return fmt.Errorf("%w: store result: %v", converter.ErrUnavailable, err)
	}

	return e.store.Transition(ctx, env.ID, model.StatusSuccess,
		fmt.Sprintf("compared images %s and %s", first.ID, second.ID))
}

func (e *Executor) analyzeDomain(ctx context.Context, env task.Envelope) error {
	var payload task.DomainPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", converter.ErrBadInput, err)
	}

	report, err := e.analyzer.Analyze(ctx, payload.Domain)
	if err != nil {
		return err
	}

	result, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := e.store.SetResult(ctx, env.ID, result); err != nil {
		return fmt.Errorf("%w: store result: %v", converter.ErrUnavailable, err)
	}

	return e.store.Transition(ctx, env.ID, model.StatusSuccess,
		fmt.Sprintf("domain %s analyzed", payload.Domain))
}

func (e *Executor) loadBytes(ctx context.Context, p string) ([]byte, error) {
	rc, err := e.files.Load(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", converter.ErrUnavailable, p, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", converter.ErrUnavailable, p, err)
	}

	return data, nil
}
