// Package playback keeps the shared project time in step with an external
// play surface whose frame counter advances on its own.
package playback

import (
	"fmt"
	"math"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/frames"
	"github.com/reelcut/api/internal/timeline"
)

// State of the synchronizer.
type State int

const (
	Paused State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// Surface is the play surface being driven. It is opaque to this package.
type Surface interface {
	SeekTo(frame int) error
	Play() error
	Pause() error
	SetMuted(muted bool) error
	CurrentFrame() int
}

// Clock is the shared project time. *timeline.Store satisfies it.
type Clock interface {
	CurrentTime() float64
	SetCurrentTime(seconds float64) (timeline.Project, error)
}

// Synchronizer reconciles the surface clock with the shared project time.
// While playing the surface clock is authoritative and shared time is left
// alone; the only write happens on the transition to paused or on a scrub
// while paused, and only when the two disagree by more than one frame.
type Synchronizer struct {
	mu      sync.Mutex
	surface Surface
	clock   Clock
	fps     int
	logger  hclog.Logger

	state    State
	muted    bool
	onCursor func(seconds float64)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithCursor receives the surface clock on every tick for cursor display.
// It is never used to write shared state.
func WithCursor(fn func(seconds float64)) Option {
	return func(s *Synchronizer) { s.onCursor = fn }
}

// WithMuted sets the initial mute state without touching the surface.
func WithMuted(muted bool) Option {
	return func(s *Synchronizer) { s.muted = muted }
}

func NewSynchronizer(surface Surface, clock Clock, fps int, logger hclog.Logger, opts ...Option) *Synchronizer {
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Synchronizer{
		surface: surface,
		clock:   clock,
		fps:     fps,
		logger:  logger,
		state:   Paused,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Play seeks the surface to the shared time and starts it.
func (s *Synchronizer) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Playing {
		return nil
	}
	frame := frames.ToFrames(s.clock.CurrentTime(), s.fps)
	if err := s.surface.SeekTo(frame); err != nil {
		return fmt.Errorf("seek to frame %d: %w", frame, err)
	}
	if err := s.surface.Play(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	s.state = Playing
	return nil
}

// Pause stops the surface and reconciles shared time with its clock.
func (s *Synchronizer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Paused {
		return nil
	}
	if err := s.surface.Pause(); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	s.state = Paused
	return s.reconcile(s.surface.CurrentFrame())
}

// SurfacePlayed records that the surface started playing on its own.
func (s *Synchronizer) SurfacePlayed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Playing
}

// SurfacePaused records that the surface paused on its own at frame.
func (s *Synchronizer) SurfacePaused(frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Paused {
		return nil
	}
	s.state = Paused
	return s.reconcile(frame)
}

// Tick observes the surface clock. It only feeds the cursor channel.
func (s *Synchronizer) Tick(frame int) {
	s.mu.Lock()
	fn := s.onCursor
	s.mu.Unlock()

	if fn != nil {
		fn(frames.ToSeconds(frame, s.fps))
	}
}

// Scrub handles a user seek on the surface. While paused it reconciles shared
// time; while playing the surface stays authoritative.
func (s *Synchronizer) Scrub(frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Playing {
		return nil
	}
	return s.reconcile(frame)
}

// SetMuted mirrors the mute state to the surface when it changes.
func (s *Synchronizer) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.muted == muted {
		return nil
	}
	if err := s.surface.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}
	s.muted = muted
	return nil
}

func (s *Synchronizer) reconcile(frame int) error {
	current := frames.ToFrames(s.clock.CurrentTime(), s.fps)
	if math.Abs(float64(frame-current)) <= 1 {
		return nil
	}
	seconds := frames.ToSeconds(frame, s.fps)
	if _, err := s.clock.SetCurrentTime(seconds); err != nil {
		return fmt.Errorf("reconcile time: %w", err)
	}
	s.logger.Debug("reconciled project time", "frame", frame, "seconds", seconds)
	return nil
}
