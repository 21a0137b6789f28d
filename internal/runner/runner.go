// Package runner calls parked runnables once per frame, in the order they
// were parked, from a single goroutine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrAlreadyParked = errors.New("runnable already parked")
	ErrNotParked     = errors.New("runnable not parked")
)

// Runnable is a per-frame callback.
type Runnable interface {
	OnTick()
}

// RunnableFunc adapts a function to Runnable.
type RunnableFunc func()

// OnTick calls f().
func (f RunnableFunc) OnTick() {
	f()
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a parked runnable.
type Option func(*config)

type config struct {
	every  uint64
	logged bool
}

// Every runs the runnable on every nth frame only.
func Every(n int) Option {
	return func(c *config) {
		if n > 1 {
			c.every = uint64(n)
		}
	}
}

// Logged adds debug logging around each call.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type entry struct {
	name string
	run  func()
	cfg  config
}

// Runner holds the parked runnables.
type Runner struct {
	logger Logger

	frames   metric.Int64Counter
	duration metric.Float64Histogram
	parked   metric.Int64ObservableGauge

	mu      sync.RWMutex
	entries []*entry

	// frameMu serializes RunFrame so runnables never overlap.
	frameMu sync.Mutex
	frame   atomic.Uint64
}

// New creates a Runner with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Runner, error) {
	r := &Runner{logger: logger}

	m := meter()

	var err error

	r.frames, err = m.Int64Counter(
		"runner.frames",
		metric.WithDescription("Total frames run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame counter: %w", err)
	}

	r.duration, err = m.Float64Histogram(
		"runner.runnable.duration",
		metric.WithDescription("Time spent in a runnable per call"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	r.parked, err = m.Int64ObservableGauge(
		"runner.parked",
		metric.WithDescription("Current number of parked runnables"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating parked gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.ObserveInt64(r.parked, int64(len(r.entries)))
			return nil
		},
		r.parked,
	)
	if err != nil {
		return nil, fmt.Errorf("registering parked callback: %w", err)
	}

	return r, nil
}

// Park adds a runnable under name. It runs from the next frame on.
func (r *Runner) Park(name string, rn Runnable, opts ...Option) error {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.name == name {
			return fmt.Errorf("%w: %s", ErrAlreadyParked, name)
		}
	}

	e := &entry{name: name, cfg: cfg}
	e.run = r.instrument(name, rn.OnTick)
	if cfg.logged {
		e.run = r.withLogging(name, e.run)
	}
	r.entries = append(r.entries, e)

	r.logger.Debug("parked runnable", "name", name, "every", cfg.every)
	return nil
}

// Unpark removes the runnable parked under name. Safe to call from inside
// a runnable; the change applies from the next frame.
func (r *Runner) Unpark(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.name == name {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			r.logger.Debug("unparked runnable", "name", name)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotParked, name)
}

// IsParked reports whether a runnable is parked under name.
func (r *Runner) IsParked(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

// Parked returns the parked names in call order.
func (r *Runner) Parked() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Frame returns the number of frames run so far.
func (r *Runner) Frame() uint64 {
	return r.frame.Load()
}

// RunFrame calls every parked runnable once. A panicking runnable is logged
// and unparked; the others still run.
func (r *Runner) RunFrame() {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	frame := r.frame.Add(1)
	r.frames.Add(context.Background(), 1)

	r.mu.RLock()
	entries := make([]*entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	for _, e := range entries {
		if e.cfg.every > 1 && frame%e.cfg.every != 0 {
			continue
		}
		if !r.call(e) {
			_ = r.Unpark(e.name)
		}
	}
}

// Loop runs frames at the given rate until ctx is done. before, if set, is
// called ahead of each frame with the wall time since the previous one.
func (r *Runner) Loop(ctx context.Context, fps int, before func(dt time.Duration)) error {
	if fps <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", fps)
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if before != nil {
				before(now.Sub(last))
			}
			last = now
			r.RunFrame()
		}
	}
}

func (r *Runner) call(e *entry) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("runnable panicked, unparking", "name", e.name, "frame", r.frame.Load(), "panic", fmt.Sprint(p))
			ok = false
		}
	}()
	e.run()
	return true
}

func (r *Runner) instrument(name string, fn func()) func() {
	nameAttr := attribute.String("runnable", name)
	return func() {
		start := time.Now()
		fn()
		r.duration.Record(context.Background(),
			float64(time.Since(start).Microseconds())/1000,
			metric.WithAttributes(nameAttr))
	}
}

func (r *Runner) withLogging(name string, fn func()) func() {
	return func() {
		start := time.Now()
		r.logger.Debug("running", "name", name, "frame", r.frame.Load())
		fn()
		r.logger.Debug("run complete", "name", name, "duration", time.Since(start))
	}
}
