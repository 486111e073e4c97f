package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/render"
	"github.com/reelcut/api/internal/service"
	"github.com/reelcut/api/internal/timeline"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newFakeJobs(ids ...string) *fakeJobs {
	f := &fakeJobs{jobs: map[string]*model.Job{}}
	for _, id := range ids {
		f.jobs[id] = &model.Job{ID: id, Status: model.JobStatusQueued}
	}
	return f
}

func (f *fakeJobs) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) with(jobID string, fn func(*model.Job)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return service.ErrJobNotFound
	}
	fn(j)
	return nil
}

func (f *fakeJobs) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	return f.with(jobID, func(j *model.Job) {
		j.Status, j.Progress, j.CurrentStep = model.JobStatusRunning, progress, step
	})
}

func (f *fakeJobs) SetRetryCount(ctx context.Context, jobID string, n int) error {
	return f.with(jobID, func(j *model.Job) { j.RetryCount = n })
}

func (f *fakeJobs) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	var closed bool
	if err := f.with(jobID, func(j *model.Job) {
		if closed = j.Status.Terminal(); !closed {
			j.Status, j.Progress, j.Result = model.JobStatusSucceeded, 100, data
		}
	}); err != nil {
		return err
	}
	if closed {
		return service.ErrJobCompleted
	}
	return nil
}

func (f *fakeJobs) FailJob(ctx context.Context, jobID string, kind render.ErrorKind, errMsg string) error {
	return f.with(jobID, func(j *model.Job) {
		j.Status, j.Error, j.ErrorKind = model.JobStatusFailed, &errMsg, string(kind)
	})
}

func (f *fakeJobs) MarkCanceled(ctx context.Context, jobID string) error {
	return f.with(jobID, func(j *model.Job) { j.Status = model.JobStatusCanceled })
}

type fakeHub struct {
	mu       sync.Mutex
	progress []int
	complete []interface{}
	errors   []string
}

func (h *fakeHub) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = append(h.progress, progress)
}

func (h *fakeHub) BroadcastComplete(jobID string, result interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.complete = append(h.complete, result)
}

func (h *fakeHub) BroadcastError(jobID string, code, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, code)
}

type scriptedBackend struct {
	err   error
	block bool
	// onRender runs before the result is returned
	onRender func()
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Render(ctx context.Context, job render.Job, update render.UpdateFunc) (*render.Result, error) {
	update(render.JobState{Step: "rendering", Progress: 0.5})
	if b.block {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &render.Error{Kind: render.KindFatalRender, Op: "render", Err: render.ErrTimedOut, Messages: []string{"render timed out"}}
		}
		return nil, &render.Error{Kind: render.KindCanceled, Op: "render", Err: render.ErrCanceled}
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.onRender != nil {
		b.onRender()
	}
	return &render.Result{
		Backend:          "scripted",
		OutputURL:        "https://cdn.example.com/" + job.ID + ".mp4",
		Codec:            job.Profile.Codec,
		Width:            job.Profile.Width,
		Height:           job.Profile.Height,
		FPS:              job.Composition.FPS,
		DurationInFrames: job.Composition.DurationInFrames,
	}, nil
}

func renderTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	p := timeline.NewProject("p1", "worker", 30, 0, 0)
	p.Texts = []timeline.TextElement{{ID: "t1", Text: "hello", PositionStart: 0, PositionEnd: 2}}
	p.Recompute()

	payload, err := json.Marshal(model.RenderJobPayload{ProjectID: "p1", Project: p})
	require.NoError(t, err)
	data, err := json.Marshal(map[string]interface{}{"jobId": jobID, "payload": json.RawMessage(payload)})
	require.NoError(t, err)
	return asynq.NewTask(service.TaskTypeRender, data)
}

func newWorker(be render.Backend, jobs *fakeJobs) (*RenderWorker, *fakeHub) {
	hub := &fakeHub{}
	return NewRenderWorker(jobs, render.NewOrchestrator(be, nil), hub, nil), hub
}

func TestRenderWorker_Success(t *testing.T) {
	jobs := newFakeJobs("j1")
	w, hub := newWorker(&scriptedBackend{}, jobs)

	require.NoError(t, w.ProcessTask(context.Background(), renderTask(t, "j1")))

	job, _ := jobs.GetJob(context.Background(), "j1")
	assert.Equal(t, model.JobStatusSucceeded, job.Status)

	var res model.RenderResultResponse
	require.NoError(t, json.Unmarshal(job.Result, &res))
	assert.Equal(t, "https://cdn.example.com/j1.mp4", res.OutputURL)
	assert.Equal(t, 60, res.DurationInFrames)
	assert.Equal(t, 1920, res.Width)

	assert.Equal(t, []int{0, 50}, hub.progress)
	assert.Len(t, hub.complete, 1)
}

func TestRenderWorker_FatalIsNotRetried(t *testing.T) {
	jobs := newFakeJobs("j1")
	fatal := &render.Error{Kind: render.KindFatalRender, Op: "render", Messages: []string{"chunk 3 failed"}}
	w, hub := newWorker(&scriptedBackend{err: fatal}, jobs)

	err := w.ProcessTask(context.Background(), renderTask(t, "j1"))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	job, _ := jobs.GetJob(context.Background(), "j1")
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, string(render.KindFatalRender), job.ErrorKind)
	assert.Contains(t, *job.Error, "chunk 3 failed")
	assert.Equal(t, []string{CodeRenderFailed}, hub.errors)
}

func TestRenderWorker_Cancel(t *testing.T) {
	jobs := newFakeJobs("j1")
	w, hub := newWorker(&scriptedBackend{block: true}, jobs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.ProcessTask(ctx, renderTask(t, "j1")) }()

	require.Eventually(t, func() bool {
		job, _ := jobs.GetJob(context.Background(), "j1")
		return job.Progress == 50
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	job, _ := jobs.GetJob(context.Background(), "j1")
	assert.Equal(t, model.JobStatusCanceled, job.Status)
	assert.Equal(t, []string{CodeRenderCanceled}, hub.errors)
}

func TestRenderWorker_TimeoutIsFailureNotCancel(t *testing.T) {
	jobs := newFakeJobs("j1")
	w, hub := newWorker(&scriptedBackend{block: true}, jobs)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := w.ProcessTask(ctx, renderTask(t, "j1"))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	job, _ := jobs.GetJob(context.Background(), "j1")
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, string(render.KindFatalRender), job.ErrorKind)
	assert.Equal(t, []string{CodeRenderFailed}, hub.errors)
}

func TestRenderWorker_LateResultKeepsCancel(t *testing.T) {
	jobs := newFakeJobs("j1")
	be := &scriptedBackend{onRender: func() {
		_ = jobs.MarkCanceled(context.Background(), "j1")
	}}
	w, hub := newWorker(be, jobs)

	require.NoError(t, w.ProcessTask(context.Background(), renderTask(t, "j1")))

	job, _ := jobs.GetJob(context.Background(), "j1")
	assert.Equal(t, model.JobStatusCanceled, job.Status)
	assert.Empty(t, hub.complete)
}

func TestRenderWorker_SkipsTerminalJobs(t *testing.T) {
	jobs := newFakeJobs("j1")
	require.NoError(t, jobs.MarkCanceled(context.Background(), "j1"))
	w, hub := newWorker(&scriptedBackend{}, jobs)

	require.NoError(t, w.ProcessTask(context.Background(), renderTask(t, "j1")))
	assert.Empty(t, hub.progress)
}

func TestRenderWorker_BadPayload(t *testing.T) {
	w, _ := newWorker(&scriptedBackend{}, newFakeJobs())
	err := w.ProcessTask(context.Background(), asynq.NewTask(service.TaskTypeRender, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
