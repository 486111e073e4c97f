package timeline

import (
	"math"
	"reflect"
	"sync"
	"time"
)

// Store owns one project's timing state. All writes go through its typed
// mutation methods; readers only ever receive clones.
type Store struct {
	// commitMu spans a commit and its notification, so subscribers observe
	// commits in commit order.
	commitMu sync.Mutex

	mu      sync.Mutex
	project Project
	newID   IDFunc
	now     func() time.Time

	subMu   sync.Mutex
	subs    map[int]func(Project)
	nextSub int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDFunc overrides element id generation.
func WithIDFunc(fn IDFunc) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// WithClock overrides the UpdatedAt time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore takes ownership of a copy of p.
func NewStore(p Project, opts ...StoreOption) *Store {
	s := &Store{
		project: p.Clone(),
		newID:   NewID,
		now:     time.Now,
		subs:    make(map[int]func(Project)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.project.Recompute()
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Clone()
}

// Subscribe registers fn to receive the state after every effective commit.
// Calls arrive in commit order, one at a time. fn must not mutate the store.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Project)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// update runs fn against the current state and commits its result unless it
// is structurally equal to what is already stored.
func (s *Store) update(fn func(Project) (Project, error)) (Project, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	cur := s.project
	next, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		return cur.Clone(), err
	}

	next.Recompute()
	next.UpdatedAt = cur.UpdatedAt
	if reflect.DeepEqual(cur, next) {
		s.mu.Unlock()
		return cur.Clone(), nil
	}

	next.UpdatedAt = s.now()
	s.project = next
	out := next.Clone()
	s.mu.Unlock()

	s.notify(out)
	return out, nil
}

func (s *Store) notify(p Project) {
	s.subMu.Lock()
	fns := make([]func(Project), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(p.Clone())
	}
}

func (s *Store) ApplySplit(sel Selection, t float64) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		return Split(p, sel, t, s.newID)
	})
}

func (s *Store) ApplyDuplicate(sel Selection) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		return Duplicate(p, sel, s.newID)
	})
}

func (s *Store) ApplyDelete(id string) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		return Delete(p, id), nil
	})
}

func (s *Store) ApplyDrag(sel Selection, newLeftPixels float64) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		return Drag(p, sel, newLeftPixels)
	})
}

func (s *Store) ApplyResize(sel Selection, newWidthPixels float64) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		return ResizeRight(p, sel, newWidthPixels)
	})
}

// AddMedia appends m to the media collection, assigning an id if it has none.
func (s *Store) AddMedia(m MediaElement) (MediaElement, error) {
	if err := ValidateMedia(&m); err != nil {
		return m, err
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	_, err := s.update(func(p Project) (Project, error) {
		if p.FindMedia(m.ID) >= 0 || p.FindText(m.ID) >= 0 {
			return p, validationf(CodeInvalidElement, "element %q already exists", m.ID)
		}
		next := p.Clone()
		next.Media = append(next.Media, m.clone())
		return next, nil
	})
	return m, err
}

// AddText appends t to the text collection, assigning an id if it has none.
func (s *Store) AddText(t TextElement) (TextElement, error) {
	if err := ValidateText(&t); err != nil {
		return t, err
	}
	if t.ID == "" {
		t.ID = s.newID()
	}
	_, err := s.update(func(p Project) (Project, error) {
		if p.FindMedia(t.ID) >= 0 || p.FindText(t.ID) >= 0 {
			return p, validationf(CodeInvalidElement, "element %q already exists", t.ID)
		}
		next := p.Clone()
		next.Texts = append(next.Texts, t.clone())
		return next, nil
	})
	return t, err
}

// UpdateMedia applies fn to a copy of the media element with id. The id and
// type cannot be changed.
func (s *Store) UpdateMedia(id string, fn func(*MediaElement)) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		i := p.FindMedia(id)
		if i < 0 {
			return p, validationf(CodeNoSelection, "media %q not found", id)
		}
		next := p.Clone()
		m := next.Media[i]
		fn(&m)
		m.ID, m.Type = p.Media[i].ID, p.Media[i].Type
		if err := ValidateMedia(&m); err != nil {
			return p, err
		}
		next.Media[i] = m
		return next, nil
	})
}

// UpdateText applies fn to a copy of the text element with id.
func (s *Store) UpdateText(id string, fn func(*TextElement)) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		i := p.FindText(id)
		if i < 0 {
			return p, validationf(CodeNoSelection, "text %q not found", id)
		}
		next := p.Clone()
		t := next.Texts[i]
		fn(&t)
		t.ID = p.Texts[i].ID
		if err := ValidateText(&t); err != nil {
			return p, err
		}
		next.Texts[i] = t
		return next, nil
	})
}

// SetCurrentTime writes the shared project time.
func (s *Store) SetCurrentTime(seconds float64) (Project, error) {
	if math.IsNaN(seconds) || seconds < 0 {
		return s.Snapshot(), validationf(CodeInvalidValue, "invalid time %v", seconds)
	}
	return s.update(func(p Project) (Project, error) {
		next := p.Clone()
		next.CurrentTime = seconds
		return next, nil
	})
}

func (s *Store) SetZoom(zoom float64) (Project, error) {
	if !(zoom > 0) {
		return s.Snapshot(), validationf(CodeInvalidValue, "zoom must be positive")
	}
	return s.update(func(p Project) (Project, error) {
		next := p.Clone()
		next.Zoom = zoom
		return next, nil
	})
}

func (s *Store) SetMuted(muted bool) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		next := p.Clone()
		next.Muted = muted
		return next, nil
	})
}

// CurrentTime reads the shared project time.
func (s *Store) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.CurrentTime
}

// FPS is the project frame rate.
func (s *Store) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.FPS
}

func (s *Store) SetName(name string) (Project, error) {
	return s.update(func(p Project) (Project, error) {
		next := p.Clone()
		next.Name = name
		return next, nil
	})
}
