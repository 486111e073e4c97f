package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/render"
)

const (
	TaskTypeRender = "render:process"
	QueueRender    = "render"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobCompleted    = errors.New("job already completed")
	ErrJobNotCompleted = errors.New("job not completed")
	ErrJobFailed       = errors.New("render failed")
)

const jobTTL = 24 * time.Hour

// releaseScript deletes the active-render guard only if it still belongs to
// the given job.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RenderService handles render job management
type RenderService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	inspector   *asynq.Inspector
	projects    *ProjectService
	backend     string
	jobTimeout  time.Duration
	logger      hclog.Logger
}

// RenderServiceOptions carries the render settings the service needs
type RenderServiceOptions struct {
	Backend    string
	JobTimeout time.Duration
	Logger     hclog.Logger
}

func NewRenderService(redisClient *redis.Client, asynqClient *asynq.Client, inspector *asynq.Inspector, projects *ProjectService, opts RenderServiceOptions) *RenderService {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	return &RenderService{
		redis:       redisClient,
		asynqClient: asynqClient,
		inspector:   inspector,
		projects:    projects,
		backend:     opts.Backend,
		jobTimeout:  opts.JobTimeout,
		logger:      opts.Logger,
	}
}

// StartRender snapshots the project and queues a render job. A project can
// have at most one non-terminal render.
func (s *RenderService) StartRender(ctx context.Context, req *model.RenderStartRequest) (*model.RenderStartResponse, error) {
	project, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	now := time.Now()

	prepared, err := render.Prepare(render.Request{JobID: jobID, Project: project, Settings: req.Settings})
	if err != nil {
		return nil, err
	}

	acquired, err := s.redis.SetNX(ctx, activeKey(req.ProjectID), jobID, s.jobTimeout).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire render guard: %w", err)
	}
	if !acquired {
		return nil, render.ErrRenderInProgress
	}

	payloadBytes, err := json.Marshal(&model.RenderJobPayload{
		ProjectID: req.ProjectID,
		Project:   prepared.Project,
		Settings:  prepared.Settings,
	})
	if err != nil {
		s.release(ctx, req.ProjectID, jobID)
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeRender,
		ProjectID: req.ProjectID,
		Backend:   s.backend,
		Status:    model.JobStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		s.release(ctx, req.ProjectID, jobID)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newRenderTask(jobID, payloadBytes)
	if err != nil {
		s.release(ctx, req.ProjectID, jobID)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue(QueueRender),
		asynq.TaskID(jobID),
		asynq.MaxRetry(prepared.Profile.MaxRetries),
		asynq.Timeout(s.jobTimeout),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		s.release(ctx, req.ProjectID, jobID)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info("render queued", "job_id", jobID, "project_id", req.ProjectID, "frames", prepared.Composition.DurationInFrames)

	return &model.RenderStartResponse{
		JobID:             jobID,
		ProjectID:         req.ProjectID,
		Status:            model.JobStatusQueued,
		Backend:           s.backend,
		EstimatedDuration: estimateSeconds(prepared),
		CreatedAt:         now,
	}, nil
}

// estimateSeconds is a rough wall-clock guess: one second of output per
// second of timeline, plus fixed setup.
func estimateSeconds(job render.Job) int {
	return int(math.Ceil(job.TargetSeconds())) + 10
}

// GetStatus returns the current status of a render job
func (s *RenderService) GetStatus(ctx context.Context, jobID string) (*model.RenderStatusResponse, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.RenderStatusResponse{
		JobID:       job.ID,
		ProjectID:   job.ProjectID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		ErrorKind:   job.ErrorKind,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
	}, nil
}

// ActiveJob returns the status of the render holding the project's guard.
// ErrJobNotFound means the project is free.
func (s *RenderService) ActiveJob(ctx context.Context, projectID string) (*model.RenderStatusResponse, error) {
	jobID, err := s.redis.Get(ctx, activeKey(projectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return s.GetStatus(ctx, jobID)
}

// GetResult returns the result of a completed render job
func (s *RenderService) GetResult(ctx context.Context, jobID string) (*model.RenderResultResponse, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case model.JobStatusSucceeded:
	case model.JobStatusFailed:
		if job.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, *job.Error)
		}
		return nil, ErrJobFailed
	default:
		return nil, ErrJobNotCompleted
	}

	var result model.RenderResultResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// CancelRender cancels a render job. Queued tasks are removed; running tasks
// have their context canceled, which stops the backend and its polling.
func (s *RenderService) CancelRender(ctx context.Context, jobID string) (*model.RenderCancelResponse, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, ErrJobCompleted
	}

	if err := s.MarkCanceled(ctx, jobID); err != nil {
		return nil, err
	}

	if s.inspector != nil {
		if err := s.inspector.DeleteTask(QueueRender, jobID); err != nil {
			if err := s.inspector.CancelProcessing(jobID); err != nil {
				s.logger.Warn("failed to signal render cancel", "job_id", jobID, "error", err)
			}
		}
	}

	return &model.RenderCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// UpdateJobProgress updates job progress (called by worker). Terminal jobs
// are left untouched.
func (s *RenderService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if progress > job.Progress {
		job.Progress = progress
	}
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// SetRetryCount records the attempt number (called by worker)
func (s *RenderService) SetRetryCount(ctx context.Context, jobID string, n int) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.RetryCount = n
	return s.saveJob(ctx, job)
}

// CompleteJob marks job as completed (called by worker)
func (s *RenderService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobCompleted
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	s.release(ctx, job.ProjectID, jobID)
	return nil
}

// FailJob marks job as failed (called by worker)
func (s *RenderService) FailJob(ctx context.Context, jobID string, kind render.ErrorKind, errMsg string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.ErrorKind = string(kind)
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	s.release(ctx, job.ProjectID, jobID)
	return nil
}

// MarkCanceled records a cancel and frees the project for a new render
func (s *RenderService) MarkCanceled(ctx context.Context, jobID string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	job.Status = model.JobStatusCanceled
	now := time.Now()
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	s.release(ctx, job.ProjectID, jobID)
	return nil
}

// GetJob loads a job record
func (s *RenderService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// Helper methods

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func activeKey(projectID string) string {
	return fmt.Sprintf("render:active:%s", projectID)
}

func (s *RenderService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *RenderService) release(ctx context.Context, projectID, jobID string) {
	if err := releaseScript.Run(ctx, s.redis, []string{activeKey(projectID)}, jobID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("failed to release render guard", "project_id", projectID, "job_id", jobID, "error", err)
	}
}

func newRenderTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRender, data), nil
}
