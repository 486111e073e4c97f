package model

import (
	"time"

	"github.com/reelcut/api/internal/render"
	"github.com/reelcut/api/internal/timeline"
)

// RenderStartRequest represents the request to start a render job
type RenderStartRequest struct {
	ProjectID string          `json:"projectId" validate:"required"`
	Settings  render.Settings `json:"settings"`
}

// RenderJobPayload is the snapshot handed to the render worker. The project
// is captured when the job is queued; later edits do not affect it.
type RenderJobPayload struct {
	ProjectID string           `json:"projectId"`
	Project   timeline.Project `json:"project"`
	Settings  render.Settings  `json:"settings"`
}

// RenderStartResponse represents the response when starting a render
type RenderStartResponse struct {
	JobID             string    `json:"jobId"`
	ProjectID         string    `json:"projectId"`
	Status            JobStatus `json:"status"`
	Backend           string    `json:"backend"`
	EstimatedDuration int       `json:"estimatedDuration"`
	CreatedAt         time.Time `json:"createdAt"`
}

// RenderStatusResponse represents the status of a render job
type RenderStatusResponse struct {
	JobID       string     `json:"jobId"`
	ProjectID   string     `json:"projectId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	RetryCount  int        `json:"retryCount"`
}

// RenderResultResponse represents the result of a completed render
type RenderResultResponse struct {
	JobID            string    `json:"jobId"`
	ProjectID        string    `json:"projectId"`
	Backend          string    `json:"backend"`
	OutputURL        string    `json:"outputUrl"`
	RenderID         string    `json:"renderId,omitempty"`
	BucketName       string    `json:"bucketName,omitempty"`
	Codec            string    `json:"codec"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	FPS              int       `json:"fps"`
	DurationInFrames int       `json:"durationInFrames"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewRenderResult flattens a backend result for the API
func NewRenderResult(jobID, projectID string, r *render.Result, now time.Time) *RenderResultResponse {
	return &RenderResultResponse{
		JobID:            jobID,
		ProjectID:        projectID,
		Backend:          r.Backend,
		OutputURL:        r.OutputURL,
		RenderID:         r.RenderID,
		BucketName:       r.BucketName,
		Codec:            r.Codec,
		Width:            r.Width,
		Height:           r.Height,
		FPS:              r.FPS,
		DurationInFrames: r.DurationInFrames,
		CreatedAt:        now,
	}
}

// RenderCancelResponse represents the response when canceling a render
type RenderCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}
