package websocket

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelcut/api/internal/timeline"
)

type envelope struct {
	Type    string           `json:"type"`
	Frame   int              `json:"frame"`
	Muted   bool             `json:"muted"`
	Seconds float64          `json:"seconds"`
	Code    string           `json:"code"`
	Project timeline.Project `json:"project"`
	Changed []string         `json:"changed"`
}

func sessionStore(t *testing.T) *timeline.Store {
	t.Helper()
	p := timeline.NewProject("p1", "session", 30, 0, 0)
	p.Media = []timeline.MediaElement{
		{ID: "v1", Type: timeline.KindVideo, Src: "a.mp4", PositionStart: 0, PositionEnd: 4, EndTime: 4, PlaybackSpeed: 1},
	}
	store := timeline.NewStore(p)
	_, err := store.SetCurrentTime(1)
	require.NoError(t, err)
	return store
}

// next reads messages until one of type typ arrives.
func next(t *testing.T, s *Session, typ string) envelope {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case raw, ok := <-s.Out():
			require.True(t, ok, "session closed while waiting for %s", typ)
			var e envelope
			require.NoError(t, json.Unmarshal(raw, &e))
			if e.Type == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s message", typ)
		}
	}
}

func send(s *Session, msg string) {
	s.Handle([]byte(msg))
}

func TestSession_SendsInitialProject(t *testing.T) {
	s := NewSession(sessionStore(t), 0, nil)
	defer s.Close()

	e := next(t, s, "project")
	assert.Equal(t, "p1", e.Project.ID)
	assert.Len(t, e.Project.Media, 1)
}

func TestSession_PlayPauseReconcilesOnce(t *testing.T) {
	store := sessionStore(t)
	s := NewSession(store, 0, nil)
	defer s.Close()

	send(s, `{"type":"play"}`)
	assert.Equal(t, 30, next(t, s, "seek").Frame)
	next(t, s, "play")

	for f := 31; f <= 90; f++ {
		send(s, `{"type":"frame","frame":`+strconv.Itoa(f)+`}`)
	}
	assert.Equal(t, 1.0, store.CurrentTime(), "ticks never write shared time")
	assert.InDelta(t, 31.0/30, next(t, s, "cursor").Seconds, 1e-9)

	send(s, `{"type":"pause"}`)
	next(t, s, "pause")
	p := next(t, s, "project")
	assert.InDelta(t, 3.0, p.Project.CurrentTime, 1e-9)
	assert.InDelta(t, 3.0, store.CurrentTime(), 1e-9)
}

func TestSession_ScrubWhilePaused(t *testing.T) {
	store := sessionStore(t)
	s := NewSession(store, 0, nil)
	defer s.Close()

	send(s, `{"type":"scrub","frame":31}`)
	assert.Equal(t, 1.0, store.CurrentTime(), "one-frame drift is ignored")

	send(s, `{"type":"scrub","frame":75}`)
	assert.InDelta(t, 2.5, store.CurrentTime(), 1e-9)
}

func TestSession_ProjectMessageListsChangedElements(t *testing.T) {
	store := sessionStore(t)
	_, err := store.AddText(timeline.TextElement{ID: "t1", Text: "title", PositionStart: 0, PositionEnd: 2})
	require.NoError(t, err)
	s := NewSession(store, 0, nil)
	defer s.Close()

	assert.Empty(t, next(t, s, "project").Changed)

	send(s, `{"type":"drag","kind":"media","index":0,"left":300}`)
	assert.Equal(t, []string{"v1"}, next(t, s, "project").Changed)
}

func TestSession_MuteMirrorsAndPersists(t *testing.T) {
	store := sessionStore(t)
	s := NewSession(store, 0, nil)
	defer s.Close()

	send(s, `{"type":"mute","muted":true}`)
	assert.True(t, next(t, s, "mute").Muted)
	assert.True(t, store.Snapshot().Muted)
}

func TestSession_DragIsCoalesced(t *testing.T) {
	store := sessionStore(t)
	s := NewSession(store, 50*time.Millisecond, nil)

	for _, left := range []string{"100", "150", "200", "250"} {
		send(s, `{"type":"drag","kind":"media","index":0,"left":`+left+`}`)
	}
	assert.InDelta(t, 1.0, store.Snapshot().Media[0].PositionStart, 1e-9, "leading value commits immediately")

	require.Eventually(t, func() bool {
		return store.Snapshot().Media[0].PositionStart == 2.5
	}, time.Second, 5*time.Millisecond, "trailing value commits after the window")

	m := store.Snapshot().Media[0]
	assert.InDelta(t, 6.5, m.PositionEnd, 1e-9)
	s.Close()
}

func TestSession_DragStreamsArePerElement(t *testing.T) {
	store := sessionStore(t)
	_, err := store.AddMedia(timeline.MediaElement{ID: "v2", Type: timeline.KindVideo, Src: "b.mp4", PositionStart: 0, PositionEnd: 2, EndTime: 2, PlaybackSpeed: 1})
	require.NoError(t, err)
	s := NewSession(store, 100*time.Millisecond, nil)

	send(s, `{"type":"drag","kind":"media","index":0,"left":100}`)
	send(s, `{"type":"drag","kind":"media","index":0,"left":300}`)
	send(s, `{"type":"drag","kind":"media","index":1,"left":500}`)

	// The second element's drag must not displace the first one's trailing value
	require.Eventually(t, func() bool {
		return store.Snapshot().Media[0].PositionStart == 3
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 5.0, store.Snapshot().Media[1].PositionStart, 1e-9)

	send(s, `{"type":"drag","kind":"media","index":1,"left":600}`)
	s.Close()
	assert.InDelta(t, 6.0, store.Snapshot().Media[1].PositionStart, 1e-9, "close commits pending values")
}

func TestSession_FractionalFrameIsRejected(t *testing.T) {
	store := sessionStore(t)
	s := NewSession(store, 0, nil)
	defer s.Close()

	send(s, `{"type":"scrub","frame":45.5}`)
	e := next(t, s, "notice")
	assert.Equal(t, timeline.CodeInvalidValue, e.Code)
	assert.Equal(t, 1.0, store.CurrentTime())

	send(s, `{"type":"scrub","frame":45.0}`)
	assert.InDelta(t, 1.5, store.CurrentTime(), 1e-9)
}

func TestSession_RejectedEditSendsNotice(t *testing.T) {
	store := sessionStore(t)
	s := NewSession(store, 0, nil)
	defer s.Close()

	before := store.Snapshot()
	send(s, `{"type":"resize","kind":"text","index":3,"width":10}`)
	assert.Equal(t, timeline.CodeNoSelection, next(t, s, "notice").Code)
	assert.Equal(t, before, store.Snapshot())

	send(s, `{"type":"warp"}`)
	assert.Equal(t, timeline.CodeInvalidValue, next(t, s, "notice").Code)
}

func TestSession_PingAndClose(t *testing.T) {
	s := NewSession(sessionStore(t), 0, nil)

	send(s, `{"type":"ping"}`)
	next(t, s, "pong")

	s.Close()
	s.Close()
	for range s.Out() {
	}
	send(s, `{"type":"ping"}`)
}
