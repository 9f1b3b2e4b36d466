// Package unlock implements the hidden admin unlock gesture: a number of taps
// in quick succession unlocks the admin area once.
package unlock

import (
	"sync"
	"time"
)

const (
	DefaultThreshold = 5
	DefaultWindow    = 2 * time.Second
)

// Counter counts taps. A tap more than window after the previous one starts
// a new count. Reaching threshold unlocks and restarts the count.
type Counter struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	now       func() time.Time

	count    int
	lastTap  time.Time
	unlocked bool
	done     chan struct{}
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// New creates a counter. Non-positive arguments fall back to the defaults.
func New(threshold int, window time.Duration, opts ...Option) *Counter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Counter{
		threshold: threshold,
		window:    window,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tap records one tap and reports whether this tap unlocked the counter.
// Only the first unlock reports true until Reset.
func (c *Counter) Tap() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.count > 0 && now.Sub(c.lastTap) > c.window {
		c.count = 0
	}
	c.count++
	c.lastTap = now

	if c.count < c.threshold {
		return false
	}
	c.count = 0
	if c.unlocked {
		return false
	}
	c.unlocked = true
	close(c.done)
	return true
}

// Count returns the taps in the current run.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Unlocked reports whether the threshold has been reached since the last Reset.
func (c *Counter) Unlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocked
}

// Done is closed when the counter unlocks.
func (c *Counter) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reset clears the tap count and locks again.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count = 0
	c.lastTap = time.Time{}
	if c.unlocked {
		c.unlocked = false
		c.done = make(chan struct{})
	}
}
