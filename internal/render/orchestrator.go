package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/timeline"
)

// Request asks for one render of a project snapshot.
type Request struct {
	JobID    string
	Project  timeline.Project
	Settings Settings
}

// Orchestrator runs render jobs on the backend chosen at construction and
// allows at most one active run per project.
type Orchestrator struct {
	backend Backend
	logger  hclog.Logger

	mu     sync.Mutex
	active map[string]*Run
}

func NewOrchestrator(backend Backend, logger hclog.Logger) *Orchestrator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Orchestrator{
		backend: backend,
		logger:  logger.Named("orchestrator"),
		active:  make(map[string]*Run),
	}
}

// BackendName reports which backend this orchestrator drives.
func (o *Orchestrator) BackendName() string {
	return o.backend.Name()
}

// Prepare snapshots the project into an immutable Job.
func Prepare(req Request) (Job, error) {
	if req.JobID == "" {
		return Job{}, newError(KindValidation, "prepare", fmt.Errorf("job id is required"))
	}
	if req.Project.ElementCount() == 0 {
		return Job{}, newError(KindValidation, "prepare", fmt.Errorf("project %s has no elements", req.Project.ID), "nothing to render")
	}
	profile, err := ResolveProfile(req.Settings)
	if err != nil {
		return Job{}, err
	}
	project := req.Project.Clone()
	return Job{
		ID:          req.JobID,
		Project:     project,
		Composition: composition.Sequence(project),
		Settings:    req.Settings.Normalize(),
		Profile:     profile,
	}, nil
}

// Start launches a run in the background. A second Start for a project whose
// run has not reached a terminal state fails with ErrRenderInProgress.
func (o *Orchestrator) Start(ctx context.Context, req Request, update UpdateFunc) (*Run, error) {
	job, err := Prepare(req)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if _, busy := o.active[job.Project.ID]; busy {
		o.mu.Unlock()
		return nil, ErrRenderInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	run := &Run{
		JobID:     job.ID,
		ProjectID: job.Project.ID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	o.active[job.Project.ID] = run
	o.mu.Unlock()

	go o.execute(ctx, run, job, update)
	return run, nil
}

// Render starts a run and waits for it.
func (o *Orchestrator) Render(ctx context.Context, req Request, update UpdateFunc) (*Result, error) {
	run, err := o.Start(ctx, req, update)
	if err != nil {
		return nil, err
	}
	return run.Wait()
}

// Active returns the running job for a project, if any.
func (o *Orchestrator) Active(projectID string) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.active[projectID]
	return r, ok
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, job Job, update UpdateFunc) {
	defer func() {
		o.mu.Lock()
		delete(o.active, run.ProjectID)
		o.mu.Unlock()
		run.cancel()
		close(run.done)
	}()

	logger := o.logger.With("job_id", job.ID, "project_id", job.Project.ID, "backend", o.backend.Name())
	logger.Info("render started", "frames", job.Composition.DurationInFrames, "resolution", job.Settings.Resolution)

	result, err := o.backend.Render(ctx, job, func(s JobState) {
		run.setState(s)
		if update != nil {
			update(s)
		}
	})

	switch {
	case err == nil:
		logger.Info("render succeeded", "output", result.OutputURL)
	case IsCanceled(err):
		s := run.State()
		s.Canceled = true
		run.setState(s)
		logger.Info("render canceled")
	default:
		logger.Error("render failed", "kind", KindOf(err), "error", err)
	}

	run.mu.Lock()
	run.result, run.err = result, err
	run.mu.Unlock()
}

// Run is one in-flight render owned by the orchestrator.
type Run struct {
	JobID     string
	ProjectID string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  JobState
	result *Result
	err    error
}

// Cancel stops tracking the job. Remote backends also attempt a server-side
// cancel.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the run is terminal.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is terminal.
func (r *Run) Wait() (*Result, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// State is the latest observed job state.
func (r *Run) State() JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s JobState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}
