package render

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/client"
)

// DefaultPollInterval is the remote progress poll period.
const DefaultPollInterval = 2 * time.Second

// FetchFunc retrieves one progress observation.
type FetchFunc func(ctx context.Context) (*client.RenderProgress, error)

// PollConfig configures StartPolling.
type PollConfig struct {
	Interval      time.Duration
	TargetSeconds float64
	Initial       JobState
	// ResolveOutput turns the reported output file into a public reference.
	ResolveOutput func(outputFile string) string
	OnUpdate      func(JobState)
	Logger        hclog.Logger
}

// PollHandle owns one poll loop and its ticker. Dispose must be called on
// every exit path; it is idempotent and waits for the loop to stop.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	state JobState
	err   error
}

// StartPolling begins polling fetch every interval until the job becomes
// terminal, ctx ends or the handle is disposed.
func StartPolling(ctx context.Context, cfg PollConfig, fetch FetchFunc) *PollHandle {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  cfg.Initial,
	}
	go h.loop(ctx, cfg, fetch)
	return h
}

func (h *PollHandle) loop(ctx context.Context, cfg PollConfig, fetch FetchFunc) {
	defer close(h.done)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			err := interrupted(ctx, "poll render")
			h.finish(func(s *JobState) {
				if err.Kind == KindCanceled {
					s.Canceled = true
				} else {
					s.FatalErrorEncountered = true
					s.addErrors(err.Messages)
				}
			}, err)
			return
		case <-ticker.C:
		}

		attempt++
		p, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			cfg.Logger.Warn("poll failed, retrying next tick", "attempt", attempt, "error", err)
			continue
		}

		h.mu.Lock()
		h.state.Observe(*p, cfg.TargetSeconds)
		if h.state.Done && cfg.ResolveOutput != nil {
			h.state.OutputRef = cfg.ResolveOutput(h.state.OutputRef)
		}
		state := h.state
		h.mu.Unlock()

		cfg.Logger.Debug("poll", "attempt", attempt, "progress", state.Progress, "done", state.Done, "fatal", state.FatalErrorEncountered)
		if cfg.OnUpdate != nil {
			cfg.OnUpdate(state)
		}

		switch {
		case state.FatalErrorEncountered:
			h.finish(nil, newError(KindFatalRender, "render", nil, state.Errors...))
			return
		case state.Done:
			h.finish(nil, nil)
			return
		}
	}
}

func (h *PollHandle) finish(mutate func(*JobState), err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if mutate != nil {
		mutate(&h.state)
	}
	h.err = err
}

// Done is closed when the loop has stopped.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop stops and returns the final state. The error is
// nil on success, a KindFatalRender *Error on fatal failure or a passed
// deadline and a KindCanceled *Error when disposed or its context was
// canceled.
func (h *PollHandle) Wait() (JobState, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.err
}

// State returns the latest observed state without blocking.
func (h *PollHandle) State() JobState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Dispose stops the loop and releases its ticker.
func (h *PollHandle) Dispose() {
	h.once.Do(h.cancel)
	<-h.done
}
