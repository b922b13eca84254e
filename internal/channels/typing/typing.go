// Package typing drives a platform typing indicator with a keepalive and
// a TTL, so an indicator never outlives the work it announces.
package typing

import (
	"log/slog"
	"sync"
	"time"
)

// Options configures a Controller.
type Options struct {
	// MaxDuration stops the indicator even if Stop is never called.
	MaxDuration time.Duration
	// KeepaliveInterval re-sends the indicator before the platform expires it.
	KeepaliveInterval time.Duration
	// StartFn sends one typing event.
	StartFn func() error
}

// Controller owns one typing indicator.
type Controller struct {
	opts Options
	stop chan struct{}
	once sync.Once
}

// New creates a stopped Controller; call Start to begin sending indicators.
func New(opts Options) *Controller {
	return &Controller{opts: opts, stop: make(chan struct{})}
}

// Start sends the first event and keeps the indicator alive in the
// background until Stop or MaxDuration.
func (c *Controller) Start() {
	c.fire()
	if c.opts.KeepaliveInterval <= 0 {
		return
	}
	go c.loop()
}

// Stop ends the indicator. Safe to call more than once.
func (c *Controller) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Controller) loop() {
	ticker := time.NewTicker(c.opts.KeepaliveInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.opts.MaxDuration > 0 {
		timer := time.NewTimer(c.opts.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-c.stop:
			return
		case <-deadline:
			slog.Debug("typing indicator TTL reached")
			c.Stop()
			return
		case <-ticker.C:
			c.fire()
		}
	}
}

func (c *Controller) fire() {
	if c.opts.StartFn == nil {
		return
	}
	if err := c.opts.StartFn(); err != nil {
		slog.Debug("typing indicator failed", "error", err)
	}
}
