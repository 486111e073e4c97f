package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/composition"
	"github.com/reelcut/api/internal/frames"
	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/playback"
	"github.com/reelcut/api/internal/timeline"
)

const noticeError = "ERROR"

type dragOp struct {
	sel  timeline.Selection
	left float64
}

type resizeOp struct {
	sel   timeline.Selection
	width float64
}

// coalescers keeps one rate-limited stream per selected element.
type coalescers[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	commit  func(T)
	streams map[timeline.Selection]*timeline.Coalescer[T]
	stopped bool
}

func newCoalescers[T any](window time.Duration, commit func(T)) *coalescers[T] {
	return &coalescers[T]{
		window:  window,
		commit:  commit,
		streams: make(map[timeline.Selection]*timeline.Coalescer[T]),
	}
}

func (c *coalescers[T]) submit(sel timeline.Selection, v T) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	stream, ok := c.streams[sel]
	if !ok {
		stream = timeline.NewCoalescer(c.window, c.commit)
		c.streams[sel] = stream
	}
	c.mu.Unlock()

	stream.Submit(v)
}

// stop commits every pending value and ignores later submissions.
func (c *coalescers[T]) stop() {
	c.mu.Lock()
	c.stopped = true
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	for _, stream := range streams {
		stream.Stop()
	}
}

// Session is one editor connection bound to a project store. The client's
// player is the play surface; pointer edits are rate limited per session.
type Session struct {
	store  *timeline.Store
	sync   *playback.Synchronizer
	drag   *coalescers[dragOp]
	resize *coalescers[resizeOp]
	logger hclog.Logger

	frame atomic.Int64

	compMu sync.Mutex
	comp   composition.Composition

	mu     sync.Mutex
	out    chan []byte
	closed bool
	unsub  func()
}

// NewSession binds a session to store. Outgoing messages are queued on
// Out(); edits arriving faster than window are coalesced.
func NewSession(store *timeline.Store, window time.Duration, logger hclog.Logger) *Session {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Session{
		store:  store,
		logger: logger,
		out:    make(chan []byte, sendBuffer),
	}

	p := store.Snapshot()
	s.sync = playback.NewSynchronizer(surface{s}, store, p.FPS, logger.Named("playback"),
		playback.WithMuted(p.Muted),
		playback.WithCursor(func(seconds float64) {
			s.emit(model.WSCursorMessage{Type: model.WSMessageTypeCursor, Seconds: seconds})
		}),
	)
	s.drag = newCoalescers(window, func(op dragOp) {
		if _, err := store.ApplyDrag(op.sel, op.left); err != nil {
			s.notice(err)
		}
	})
	s.resize = newCoalescers(window, func(op resizeOp) {
		if _, err := store.ApplyResize(op.sel, op.width); err != nil {
			s.notice(err)
		}
	})
	s.unsub = store.Subscribe(s.publishProject)

	s.comp = composition.Sequence(p)
	s.emit(model.WSProjectMessage{Type: model.WSMessageTypeProject, Project: p})
	return s
}

// publishProject sends a committed project along with the ids of the
// instructions that changed since the last one sent.
func (s *Session) publishProject(p timeline.Project) {
	next := composition.Sequence(p)
	s.compMu.Lock()
	changed := composition.Changed(s.comp, next)
	s.comp = next
	s.compMu.Unlock()

	s.emit(model.WSProjectMessage{Type: model.WSMessageTypeProject, Project: p, Changed: changed})
}

// Out is the queue of encoded server messages. It is closed by Close.
func (s *Session) Out() <-chan []byte {
	return s.out
}

// Handle processes one client message.
func (s *Session) Handle(raw []byte) {
	var cmd model.WSSessionCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.notice(&timeline.ValidationError{Code: timeline.CodeInvalidValue, Message: "malformed message"})
		return
	}

	var err error
	switch cmd.Type {
	case model.WSMessageTypePing:
		s.emit(model.WSMessage{Type: model.WSMessageTypePong})
	case model.WSMessageTypePlay:
		err = s.sync.Play()
	case model.WSMessageTypePause:
		err = s.sync.Pause()
	case model.WSMessageTypePlayed:
		s.sync.SurfacePlayed()
	case model.WSMessageTypePaused, model.WSMessageTypeFrame, model.WSMessageTypeScrub:
		err = s.handleFrame(cmd.Type, cmd.Frame)
	case model.WSMessageTypeMute:
		if err = s.sync.SetMuted(cmd.Muted); err == nil {
			_, err = s.store.SetMuted(cmd.Muted)
		}
	case model.WSMessageTypeDrag:
		sel := timeline.Selection{Kind: cmd.Kind, Index: cmd.Index}
		s.drag.submit(sel, dragOp{sel: sel, left: cmd.Left})
	case model.WSMessageTypeResize:
		sel := timeline.Selection{Kind: cmd.Kind, Index: cmd.Index}
		s.resize.submit(sel, resizeOp{sel: sel, width: cmd.Width})
	default:
		err = &timeline.ValidationError{Code: timeline.CodeInvalidValue, Message: "unknown message type " + cmd.Type}
	}
	if err != nil {
		s.notice(err)
	}
}

// handleFrame applies a frame report from the player. Frame numbers must be
// whole.
func (s *Session) handleFrame(typ string, raw float64) error {
	frame, err := frames.Exact(raw)
	if err != nil {
		return &timeline.ValidationError{Code: timeline.CodeInvalidValue, Message: err.Error()}
	}
	s.frame.Store(int64(frame))

	switch typ {
	case model.WSMessageTypePaused:
		return s.sync.SurfacePaused(frame)
	case model.WSMessageTypeScrub:
		return s.sync.Scrub(frame)
	}
	s.sync.Tick(frame)
	return nil
}

// Close commits pending edits, detaches from the store and closes Out.
func (s *Session) Close() {
	s.drag.stop()
	s.resize.stop()
	s.unsub()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

func (s *Session) notice(err error) {
	code := noticeError
	var ve *timeline.ValidationError
	if errors.As(err, &ve) {
		code = ve.Code
	} else {
		s.logger.Warn("session command failed", "error", err)
	}
	s.emit(model.WSNoticeMessage{Type: model.WSMessageTypeNotice, Code: code, Message: err.Error()})
}

func (s *Session) emit(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal session message", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- data:
	default:
		s.logger.Warn("session send buffer full, dropping message")
	}
}

// surface relays play surface commands to the client's player.
type surface struct{ s *Session }

func (f surface) SeekTo(frame int) error {
	f.s.frame.Store(int64(frame))
	f.s.emit(model.WSFrameMessage{Type: model.WSMessageTypeSeek, Frame: frame})
	return nil
}

func (f surface) Play() error {
	f.s.emit(model.WSMessage{Type: model.WSMessageTypePlay})
	return nil
}

func (f surface) Pause() error {
	f.s.emit(model.WSMessage{Type: model.WSMessageTypePause})
	return nil
}

func (f surface) SetMuted(muted bool) error {
	f.s.emit(model.WSMuteMessage{Type: model.WSMessageTypeMute, Muted: muted})
	return nil
}

func (f surface) CurrentFrame() int {
	return int(f.s.frame.Load())
}

// ServeSession runs an editor session over c until the client disconnects.
func ServeSession(c *websocket.Conn, store *timeline.Store, window time.Duration, logger hclog.Logger) {
	session := NewSession(store, window, logger)
	defer session.Close()

	go writePump(c, session.Out(), nil)
	readPump(c, session.logger, session.Handle)
}
