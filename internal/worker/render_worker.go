package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/render"
	"github.com/reelcut/api/internal/service"
)

// JobStore is the job bookkeeping the worker needs
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error
	SetRetryCount(ctx context.Context, jobID string, n int) error
	CompleteJob(ctx context.Context, jobID string, result interface{}) error
	FailJob(ctx context.Context, jobID string, kind render.ErrorKind, errMsg string) error
	MarkCanceled(ctx context.Context, jobID string) error
}

// Broadcaster pushes job events to watching clients
type Broadcaster interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, result interface{})
	BroadcastError(jobID string, code, message string)
}

// Error codes sent to job watchers
const (
	CodeRenderFailed   = "RENDER_FAILED"
	CodeRenderCanceled = "RENDER_CANCELED"
)

var _ JobStore = (*service.RenderService)(nil)

// RenderWorker processes render jobs through the orchestrator
type RenderWorker struct {
	jobs         JobStore
	orchestrator *render.Orchestrator
	hub          Broadcaster
	logger       hclog.Logger
}

// NewRenderWorker creates a new render worker
func NewRenderWorker(jobs JobStore, orchestrator *render.Orchestrator, hub Broadcaster, logger hclog.Logger) *RenderWorker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RenderWorker{
		jobs:         jobs,
		orchestrator: orchestrator,
		hub:          hub,
		logger:       logger,
	}
}

// ProcessTask handles render task processing
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID
	logger := w.logger.With("job_id", jobID)

	job, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status.Terminal() {
		logger.Info("skipping terminal job", "status", job.Status)
		return nil
	}

	var payload model.RenderJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, render.KindValidation, "Invalid payload")
		return fmt.Errorf("failed to unmarshal render payload: %v: %w", err, asynq.SkipRetry)
	}

	if n, ok := asynq.GetRetryCount(ctx); ok && n > 0 {
		if err := w.jobs.SetRetryCount(ctx, jobID, n); err != nil {
			logger.Warn("failed to record retry count", "error", err)
		}
	}

	logger.Info("starting render job", "project_id", payload.ProjectID)
	w.updateProgress(ctx, jobID, render.JobState{Step: "queued"})

	run, err := w.orchestrator.Start(ctx, render.Request{
		JobID:    jobID,
		Project:  payload.Project,
		Settings: payload.Settings,
	}, func(s render.JobState) {
		w.updateProgress(ctx, jobID, s)
	})
	if err != nil {
		return w.handleFailure(ctx, jobID, err)
	}

	result, err := run.Wait()
	if err != nil {
		return w.handleFailure(ctx, jobID, err)
	}

	out := model.NewRenderResult(jobID, payload.ProjectID, result, time.Now())
	if err := w.jobs.CompleteJob(ctx, jobID, out); err != nil {
		if errors.Is(err, service.ErrJobCompleted) {
			logger.Info("render finished after the job was closed, result dropped")
			return nil
		}
		w.failJob(ctx, jobID, render.KindTransient, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, out)
	logger.Info("render job completed", "output", result.OutputURL)
	return nil
}

// handleFailure records a failed attempt. Transient errors are returned for
// asynq to retry while attempts remain; everything else is terminal.
func (w *RenderWorker) handleFailure(ctx context.Context, jobID string, err error) error {
	logger := w.logger.With("job_id", jobID)

	if errors.Is(err, render.ErrRenderInProgress) {
		logger.Warn("project already rendering in this process, will retry")
		return err
	}

	if render.IsCanceled(err) || errors.Is(ctx.Err(), context.Canceled) {
		bg, cancel := detached(ctx)
		defer cancel()
		if err := w.jobs.MarkCanceled(bg, jobID); err != nil {
			logger.Warn("failed to mark job canceled", "error", err)
		}
		w.hub.BroadcastError(jobID, CodeRenderCanceled, "Render canceled")
		logger.Info("render job canceled")
		return nil
	}

	if render.Retryable(err) && attemptsRemain(ctx) {
		logger.Warn("render attempt failed, will retry", "error", err)
		return err
	}

	w.failJob(ctx, jobID, render.KindOf(err), err.Error())
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

func attemptsRemain(ctx context.Context) bool {
	n, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	return ok1 && ok2 && n < maxRetry
}

func (w *RenderWorker) updateProgress(ctx context.Context, jobID string, s render.JobState) {
	progress := s.Percent()
	if err := w.jobs.UpdateJobProgress(ctx, jobID, progress, s.Step); err != nil {
		w.logger.Warn("failed to update progress", "job_id", jobID, "error", err)
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, s.Step)
}

func (w *RenderWorker) failJob(ctx context.Context, jobID string, kind render.ErrorKind, errMsg string) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := w.jobs.FailJob(ctx, jobID, kind, errMsg); err != nil {
		w.logger.Error("failed to mark job as failed", "job_id", jobID, "error", err)
	}
	w.hub.BroadcastError(jobID, CodeRenderFailed, errMsg)
}

// detached outlives a canceled or timed-out task context for final
// bookkeeping writes.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}
