package timeline

import (
	"sync"
	"time"
)

// Coalescer commits a stream of values at a bounded rate. The first value of
// a burst is committed immediately; values arriving inside the window replace
// each other and the last one is committed when the window closes. A pending
// value is never dropped, and commits happen in submission order.
//
// commit runs with the coalescer's lock held and must not call back into it.
type Coalescer[T any] struct {
	window time.Duration
	commit func(T)

	mu      sync.Mutex
	timer   *time.Timer
	open    bool
	pending *T
	stopped bool
}

// NewCoalescer returns a Coalescer committing through fn at most once per
// window.
func NewCoalescer[T any](window time.Duration, fn func(T)) *Coalescer[T] {
	return &Coalescer[T]{window: window, commit: fn}
}

// Submit offers v for commit.
func (c *Coalescer[T]) Submit(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if c.window <= 0 {
		c.commit(v)
		return
	}
	if c.open {
		c.pending = &v
		return
	}
	c.commit(v)
	c.openWindow()
}

func (c *Coalescer[T]) openWindow() {
	c.open = true
	c.timer = time.AfterFunc(c.window, c.closeWindow)
}

func (c *Coalescer[T]) closeWindow() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || !c.open {
		return
	}
	if c.pending == nil {
		c.open = false
		return
	}
	v := *c.pending
	c.pending = nil
	c.commit(v)
	c.openWindow()
}

// Flush commits any pending value now.
func (c *Coalescer[T]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *Coalescer[T]) flushLocked() {
	if c.pending == nil {
		return
	}
	v := *c.pending
	c.pending = nil
	c.commit(v)
}

// Stop commits any pending value and releases the timer. Later submissions
// are ignored.
func (c *Coalescer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.flushLocked()
	c.stopped = true
	c.open = false
	if c.timer != nil {
		c.timer.Stop()
	}
}
