// Package runner drives a flow.Registry from the outside: it advances the
// virtual clock, drains the event queue, resumes budget-limited blocks and
// updates music, and detects when every flowchart has gone idle.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/logger"
)

var (
	// ErrTerminated is returned by Step after Terminate.
	ErrTerminated = errors.New("runner terminated")
	// ErrTimeout is returned when the configured timeout has passed.
	ErrTimeout = errors.New("timeout exceeded")
)

// DefaultInterval is the tick interval of Run (about 60 ticks per second).
const DefaultInterval = 16 * time.Millisecond

// Music is the part of audio.Jukebox the runner drives.
type Music interface {
	Update(dt time.Duration)
	Busy() bool
}

// Runner steps a registry.
type Runner struct {
	reg      *flow.Registry
	music    Music
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	elapsed    time.Duration
	ticks      int
	dropped    int
	terminated atomic.Bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the tick interval of Run.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTimeout stops the run after d of driver time. 0 means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithMusic makes the runner update m every tick.
func WithMusic(m Music) Option {
	return func(r *Runner) { r.music = m }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// New creates a Runner for reg.
func New(reg *flow.Registry, opts ...Option) *Runner {
	r := &Runner{reg: reg, interval: DefaultInterval, log: logger.GetLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the driven registry.
func (r *Runner) Registry() *flow.Registry { return r.reg }

// Elapsed returns the driver time stepped so far.
func (r *Runner) Elapsed() time.Duration { return r.elapsed }

// Ticks returns the number of steps taken.
func (r *Runner) Ticks() int { return r.ticks }

// Terminate makes the next Step fail with ErrTerminated. Safe for
// concurrent use.
func (r *Runner) Terminate() {
	if !r.terminated.Swap(true) {
		r.log.Info("Runner termination requested")
	}
}

// IsTerminated reports whether Terminate was called.
func (r *Runner) IsTerminated() bool { return r.terminated.Load() }

// Idle reports whether nothing is left to do: no block executes and no
// timer, queued event or invocation is pending.
func (r *Runner) Idle() bool {
	if r.reg.Busy() {
		return false
	}
	return r.music == nil || !r.music.Busy()
}

// Step performs one tick of dt. It must be called on the driver goroutine.
func (r *Runner) Step(dt time.Duration) error {
	if r.terminated.Load() {
		return ErrTerminated
	}
	if dt < 0 {
		dt = 0
	}
	r.ticks++
	r.elapsed += dt

	r.reg.RunInvoked()
	r.reg.Advance(dt)
	if r.music != nil {
		r.music.Update(dt)
	}
	r.reg.ProcessEvents()
	if d := r.reg.Queue().Dropped(); d > r.dropped {
		r.log.Warn("Event queue full, events dropped", "dropped", d-r.dropped, "total", d)
		r.dropped = d
	}
	r.reg.Tick()

	if r.timeout > 0 && r.elapsed >= r.timeout {
		r.log.Info("Timeout exceeded", "elapsed", r.elapsed, "timeout", r.timeout)
		r.Terminate()
		return ErrTimeout
	}
	return nil
}

// Run starts the registry and steps it with wall-clock time until it goes
// idle, Terminate is called, the timeout passes or ctx is cancelled. Every
// block is stopped before Run returns. Reaching idle or Terminate returns
// nil.
func (r *Runner) Run(ctx context.Context) error {
	r.reg.Start()
	defer r.reg.StopAll()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		if r.Idle() {
			r.log.Info("All flowcharts idle", "elapsed", r.elapsed, "ticks", r.ticks)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := r.Step(dt); err != nil {
				if errors.Is(err, ErrTerminated) {
					return nil
				}
				return err
			}
		}
	}
}
