// Package render drives render jobs to a terminal state on a local or remote
// backend.
package render

import (
	"context"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/timeline"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Job is the immutable input of one render. It is built from a project
// snapshot and never written back to the project.
type Job struct {
	ID          string                  `json:"id"`
	Project     timeline.Project        `json:"project"`
	Composition composition.Composition `json:"composition"`
	Settings    Settings                `json:"settings"`
	Profile     Profile                 `json:"profile"`
}

// TargetSeconds is the composition length in seconds.
func (j Job) TargetSeconds() float64 {
	if j.Composition.FPS <= 0 {
		return 0
	}
	return float64(j.Composition.DurationInFrames) / float64(j.Composition.FPS)
}

// Result describes a finished render.
type Result struct {
	Backend          string `json:"backend"`
	OutputURL        string `json:"outputUrl"`
	RenderID         string `json:"renderId,omitempty"`
	BucketName       string `json:"bucketName,omitempty"`
	LocalPath        string `json:"localPath,omitempty"`
	Codec            string `json:"codec"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	FPS              int    `json:"fps"`
	DurationInFrames int    `json:"durationInFrames"`
}

// UpdateFunc receives every state change of a running job.
type UpdateFunc func(JobState)

// Backend renders a job to completion. Render blocks until the job is
// terminal or ctx ends.
type Backend interface {
	Name() string
	Render(ctx context.Context, job Job, update UpdateFunc) (*Result, error)
}

func newResult(backend string, job Job) *Result {
	return &Result{
		Backend:          backend,
		Codec:            job.Profile.Codec,
		Width:            job.Profile.Width,
		Height:           job.Profile.Height,
		FPS:              job.Composition.FPS,
		DurationInFrames: job.Composition.DurationInFrames,
	}
}
