package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/pix-erase/internal/converter"
	"github.com/aliskhannn/pix-erase/internal/model"
	"github.com/aliskhannn/pix-erase/internal/task"
)

// memStore is an in-memory status store that records every transition, so
// tests can assert on the exact lifecycle a task went through.
type memStore struct {
	tasks   map[model.TaskID]model.Task
	history map[model.TaskID][]model.TaskStatus
}

func newMemStore() *memStore {
	return &memStore{
		tasks:   make(map[model.TaskID]model.Task),
		history: make(map[model.TaskID][]model.TaskStatus),
	}
}

func (s *memStore) Create(_ context.Context, t model.Task) error {
	s.tasks[t.ID] = t
	s.history[t.ID] = []model.TaskStatus{t.Status}
	return nil
}

func (s *memStore) Get(_ context.Context, id model.TaskID) (model.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, task.ErrTaskNotFound
	}
	return t, nil
}

func (s *memStore) Transition(_ context.Context, id model.TaskID, to model.TaskStatus, description string) error {
	t, ok := s.tasks[id]
	if !ok {
		return task.ErrTaskNotFound
	}
	if !model.CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", task.ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.Description = description
	s.tasks[id] = t
	s.history[id] = append(s.history[id], to)
	return nil
}

func (s *memStore) SetResult(_ context.Context, id model.TaskID, result json.RawMessage) error {
	t, ok := s.tasks[id]
	if !ok {
		return task.ErrTaskNotFound
	}
	t.Result = result
	s.tasks[id] = t
	return nil
}

type fakeImages struct {
	images map[uuid.UUID]model.Image
}

func (r *fakeImages) GetImage(_ context.Context, id uuid.UUID) (model.Image, error) {
	img, ok := r.images[id]
	if !ok {
		return model.Image{}, errors.New("image not found")
	}
	return img, nil
}

func (r *fakeImages) UpdateImage(_ context.Context, img model.Image) error {
	r.images[img.ID] = img
	return nil
}

type fakeFiles struct {
	blobs map[string][]byte
}

func (f *fakeFiles) Save(_ context.Context, subdir, filename string, src io.Reader) (string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	p := subdir + "/" + filename
	f.blobs[p] = data
	return p, nil
}

func (f *fakeFiles) Load(_ context.Context, p string) (io.ReadCloser, error) {
	data, ok := f.blobs[p]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// flakyConverter fails a configured number of times before succeeding.
type flakyConverter struct {
	failures int
	err      error
	calls    int
}

func (c *flakyConverter) Convert(_ context.Context, src []byte, _ converter.Params) ([]byte, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.err
	}
	return src, nil
}

type fakeAnalyzer struct {
	report model.DomainReport
	err    error
	calls  int
}

func (a *fakeAnalyzer) Analyze(context.Context, string) (model.DomainReport, error) {
	a.calls++
	if a.err != nil {
		return model.DomainReport{}, a.err
	}
	return a.report, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

type execFixture struct {
	exec     *Executor
	store    *memStore
	images   *fakeImages
	files    *fakeFiles
	ai       *flakyConverter
	analyzer *fakeAnalyzer
}

func newExecFixture(t *testing.T, ai *flakyConverter) *execFixture {
	t.Helper()

	if ai == nil {
		ai = &flakyConverter{}
	}
	f := &execFixture{
		store:    newMemStore(),
		images:   &fakeImages{images: make(map[uuid.UUID]model.Image)},
		files:    &fakeFiles{blobs: make(map[string][]byte)},
		ai:       ai,
		analyzer: &fakeAnalyzer{},
	}
	f.exec = NewExecutor(f.store, converter.NewRegistry(ai), f.images, f.files, f.analyzer, Config{
		MaxAttempts:    3,
		RetryDelay:     time.Millisecond,
		Backoff:        2.0,
		DefaultTimeout: time.Minute,
	})
	return f
}

// addImage stores metadata plus bytes and returns the image.
func (f *execFixture) addImage(t *testing.T, name string, w, h int) model.Image {
	t.Helper()
	img, err := model.NewImage(uuid.New(), name, w, h, "")
	require.NoError(t, err)
	img.Path = "original/" + img.ID.String() + ".png"
	f.files.blobs[img.Path] = pngBytes(t, w, h)
	f.images.images[img.ID] = img
	return img
}

// queueTask registers a queued record and returns the matching envelope.
func (f *execFixture) queueTask(t *testing.T, kind string, payload any) task.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	id := model.NewTaskID(kind)
	require.NoError(t, f.store.Create(context.Background(), model.Task{
		ID:        id,
		Kind:      kind,
		Status:    model.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}))

	return task.Envelope{ID: id, Kind: kind, Payload: data, Attempt: 1}
}

func TestExecuteGrayscaleSuccess(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	img := f.addImage(t, "cat.png", 16, 16)
	env := f.queueTask(t, task.KindGrayscaleImage, task.ImagePayload{ImageID: img.ID})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, rec.Status)
	assert.NotNil(t, rec.Result)

	assert.Equal(t, []model.TaskStatus{
		model.StatusQueued, model.StatusStarted, model.StatusProcessing, model.StatusSuccess,
	}, f.store.history[env.ID])

	// The image record now points at the processed object.
	updated, err := f.images.GetImage(context.Background(), img.ID)
	require.NoError(t, err)
	assert.NotEqual(t, img.Path, updated.Path)
	assert.Contains(t, updated.Path, "processed/")
	_, ok := f.files.blobs[updated.Path]
	assert.True(t, ok, "processed bytes must be stored")
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	// The AI upscale backend fails twice before answering.
	ai := &flakyConverter{failures: 2, err: converter.ErrUnavailable}
	f := newExecFixture(t, ai)

	img := f.addImage(t, "cat.png", 8, 8)
	env := f.queueTask(t, task.KindUpscaleImage, task.ImagePayload{
		ImageID:   img.ID,
		Algorithm: task.AlgorithmAI,
		Params:    converter.Params{Scale: 2},
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, rec.Status)
	assert.Equal(t, 3, ai.calls)

	// Both intermediate failures are visible as retrying states.
	assert.Equal(t, []model.TaskStatus{
		model.StatusQueued, model.StatusStarted,
		model.StatusProcessing, model.StatusRetrying,
		model.StatusProcessing, model.StatusRetrying,
		model.StatusProcessing, model.StatusSuccess,
	}, f.store.history[env.ID])
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	ai := &flakyConverter{failures: 10, err: converter.ErrUnavailable}
	f := newExecFixture(t, ai)

	img := f.addImage(t, "cat.png", 8, 8)
	env := f.queueTask(t, task.KindUpscaleImage, task.ImagePayload{
		ImageID:   img.ID,
		Algorithm: task.AlgorithmAI,
		Params:    converter.Params{Scale: 2},
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, rec.Status)
	assert.Equal(t, 3, ai.calls, "exactly MaxAttempts executions")
}

func TestExecuteDeterministicFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	ai := &flakyConverter{failures: 10, err: converter.ErrBadInput}
	f := newExecFixture(t, ai)

	img := f.addImage(t, "cat.png", 8, 8)
	env := f.queueTask(t, task.KindUpscaleImage, task.ImagePayload{
		ImageID:   img.ID,
		Algorithm: task.AlgorithmAI,
		Params:    converter.Params{Scale: 2},
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, rec.Status)
	assert.Equal(t, 1, ai.calls, "bad input must not be retried")

	assert.Equal(t, []model.TaskStatus{
		model.StatusQueued, model.StatusStarted, model.StatusProcessing, model.StatusFailure,
	}, f.store.history[env.ID])
}

func TestExecuteDropsUnknownTask(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	env := task.Envelope{
		ID:      model.NewTaskID(task.KindGrayscaleImage),
		Kind:    task.KindGrayscaleImage,
		Payload: json.RawMessage(`{}`),
		Attempt: 1,
	}

	// No status record exists: the message is dropped, not requeued.
	require.NoError(t, f.exec.Execute(context.Background(), env))
}

func TestExecuteIgnoresTerminalRedelivery(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	img := f.addImage(t, "cat.png", 8, 8)
	env := f.queueTask(t, task.KindGrayscaleImage, task.ImagePayload{ImageID: img.ID})

	require.NoError(t, f.exec.Execute(context.Background(), env))
	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, rec.Status)

	historyLen := len(f.store.history[env.ID])

	// Redelivery after success must be a no-op.
	require.NoError(t, f.exec.Execute(context.Background(), env))
	assert.Len(t, f.store.history[env.ID], historyLen, "terminal states are immutable")
}

func TestExecuteRecoversInterruptedTask(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	img := f.addImage(t, "cat.png", 8, 8)
	env := f.queueTask(t, task.KindGrayscaleImage, task.ImagePayload{ImageID: img.ID})

	// Simulate a crash mid-processing: the record is stuck in processing and
	// the queue redelivers the message.
	require.NoError(t, f.store.Transition(context.Background(), env.ID, model.StatusStarted, ""))
	require.NoError(t, f.store.Transition(context.Background(), env.ID, model.StatusProcessing, ""))

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, rec.Status)
}

func TestExecuteUpscaleUpdatesDimensions(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	img := f.addImage(t, "cat.png", 10, 20)
	env := f.queueTask(t, task.KindUpscaleImage, task.ImagePayload{
		ImageID:   img.ID,
		Algorithm: task.AlgorithmNearestNeighbour,
		Params:    converter.Params{Scale: 3},
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	updated, err := f.images.GetImage(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, updated.Width)
	assert.Equal(t, 60, updated.Height)
}

func TestExecuteRotateRecordsActualDimensions(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	img := f.addImage(t, "cat.png", 20, 10)
	env := f.queueTask(t, task.KindRotateImage, task.ImagePayload{
		ImageID: img.ID,
		Params:  converter.Params{Angle: 45},
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	// A 45° rotation expands the canvas to the rotated bounding box, so the
	// record must carry the dimensions of the processed bytes, not the
	// original ones.
	updated, err := f.images.GetImage(context.Background(), img.ID)
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.files.blobs[updated.Path]))
	require.NoError(t, err)
	assert.Equal(t, cfg.Width, updated.Width)
	assert.Equal(t, cfg.Height, updated.Height)
	assert.NotEqual(t, 20, updated.Width)
	assert.NotEqual(t, 10, updated.Height)
}

func TestExecuteRightAngleRotateSwapsDimensions(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	img := f.addImage(t, "cat.png", 20, 10)
	env := f.queueTask(t, task.KindRotateImage, task.ImagePayload{
		ImageID: img.ID,
		Params:  converter.Params{Angle: 90},
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	updated, err := f.images.GetImage(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Width)
	assert.Equal(t, 20, updated.Height)
}

func TestExecuteCompare(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	first := f.addImage(t, "cat.png", 16, 16)
	second := f.addImage(t, "dog.png", 16, 32)

	env := f.queueTask(t, task.KindCompareImages, task.ComparePayload{
		FirstImageID:  first.ID,
		SecondImageID: second.ID,
	})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, rec.Status)

	var result model.ComparisonResult
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.Equal(t, first.ID, result.FirstImageID)
	assert.Equal(t, second.ID, result.SecondImageID)
	assert.True(t, result.DifferentNames)
	assert.False(t, result.DifferentWidth)
	assert.True(t, result.DifferentHeight)
}

func TestExecuteAnalyzeDomain(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	f.analyzer.report = model.DomainReport{
		Domain:     "example.com",
		Subdomains: []string{"www.example.com"},
		Title:      "Example Domain",
		AnalyzedAt: time.Now().UTC(),
	}

	env := f.queueTask(t, task.KindAnalyzeDomain, task.DomainPayload{Domain: "example.com"})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, rec.Status)

	var report model.DomainReport
	require.NoError(t, json.Unmarshal(rec.Result, &report))
	assert.Equal(t, "example.com", report.Domain)
	assert.Equal(t, "Example Domain", report.Title)
}

func TestExecuteAnalyzeDomainTransientFailure(t *testing.T) {
	t.Parallel()
	f := newExecFixture(t, nil)

	f.analyzer.err = fmt.Errorf("%w: dns lookup timed out", converter.ErrUnavailable)

	env := f.queueTask(t, task.KindAnalyzeDomain, task.DomainPayload{Domain: "example.com"})

	require.NoError(t, f.exec.Execute(context.Background(), env))

	rec, err := f.store.Get(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailure, rec.Status)
	assert.Equal(t, 3, f.analyzer.calls, "transient analyzer failures use the retry budget")
}
