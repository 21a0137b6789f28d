// Package tracker keeps a free camera fixed in the co-rotating frame of two
// bodies so that the viewer sees their libration instead of their bulk
// orbital motion. A Tracker is driven by a host frame loop through OnTick.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skytether/libration/internal/frame"
	"github.com/skytether/libration/pkg/vec"
)

// Config controls a Tracker.
type Config struct {
	BodyA string
	BodyB string

	// Interval is the minimum wall-clock time between processed ticks.
	Interval time.Duration

	Epsilon float64

	// CameraUnitScale converts object units to camera units.
	CameraUnitScale float64

	// Immediate is passed to the host setters; false asks the host to
	// smooth the change.
	Immediate bool
}

// DefaultConfig returns the Earth/Moon configuration.
func DefaultConfig() Config {
	return Config{
		BodyA:           "Earth",
		BodyB:           "Moon",
		Interval:        100 * time.Millisecond,
		Epsilon:         vec.Epsilon,
		CameraUnitScale: 1e6,
		Immediate:       true,
	}
}

// TickClock holds the gate's memory between invocations.
type TickClock struct {
	LastWall time.Time
	LastSim  float64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithObserver registers an observer for processed ticks.
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.observers = append(t.observers, o)
	}
}

// Tracker is the per-frame camera tracking kernel. It is not safe for
// concurrent use; the host must not overlap OnTick calls.
type Tracker struct {
	host      Host
	cfg       Config
	clock     Clock
	logger    *slog.Logger
	observers []Observer

	ticks metric.Int64Counter

	state State
	tied  TiedPose
	tick  TickClock
	seq   uint64
}

// New creates a Tracker bound to host. The host's current simulation time
// is sampled as the starting point for pause detection.
func New(host Host, cfg Config, opts ...Option) (*Tracker, error) {
	if cfg.BodyA == "" || cfg.BodyB == "" {
		return nil, fmt.Errorf("tracker needs two bodies, got %q and %q", cfg.BodyA, cfg.BodyB)
	}
	if cfg.BodyA == cfg.BodyB {
		return nil, fmt.Errorf("tracker bodies must differ, got %q twice", cfg.BodyA)
	}
	if cfg.CameraUnitScale <= 0 {
		return nil, fmt.Errorf("camera unit scale must be positive, got %g", cfg.CameraUnitScale)
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = vec.Epsilon
	}

	t := &Tracker{
		host:   host,
		cfg:    cfg,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	t.ticks, err = meter().Int64Counter(
		"tracker.ticks",
		metric.WithDescription("Tracker invocations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	t.tick.LastSim = host.SimulationTime()
	return t, nil
}

// State returns the current capture state.
func (t *Tracker) State() State {
	return t.state
}

// Tied returns the held capture. Meaningful only while Tracking.
func (t *Tracker) Tied() TiedPose {
	return t.tied
}

// Clock returns the gate's state.
func (t *Tracker) Clock() TickClock {
	return t.tick
}

// Reset drops any capture; the next valid tick captures afresh.
func (t *Tracker) Reset() {
	t.state = Idle
	t.tied = TiedPose{}
}

// OnTick runs one step of the tracker. It is meant to be called once per
// host frame.
func (t *Tracker) OnTick() {
	now := t.clock.Now()
	if !t.tick.LastWall.IsZero() && now.Sub(t.tick.LastWall) < t.cfg.Interval {
		t.count(OutcomeThrottled)
		return
	}
	t.tick.LastWall = now

	sim := t.host.SimulationTime()
	dSim := sim - t.tick.LastSim
	t.tick.LastSim = sim

	t.seq++
	r := TickReport{
		Seq:      t.seq,
		Wall:     now,
		SimTime:  sim,
		SimDelta: dSim,
	}
	r.Outcome = t.step(dSim, &r)
	r.State = t.state
	r.Tied = t.tied

	t.count(r.Outcome)
	for _, o := range t.observers {
		o.ObserveTick(r)
	}
}

func (t *Tracker) step(dSim float64, r *TickReport) Outcome {
	if dSim == 0 {
		if t.state == Tracking {
			t.logger.Info("Simulation time paused, dropping capture", "bodyA", t.cfg.BodyA, "bodyB", t.cfg.BodyB)
		}
		t.Reset()
		return OutcomePaused
	}

	pos := t.positions()
	pair := frame.BuildPair(pos, t.cfg.Epsilon)
	r.Origin = pos.A
	r.Frames = pair
	switch pair.Status {
	case frame.Static:
		return OutcomeStatic
	case frame.Degenerate:
		t.logger.Debug("Degenerate frame, skipping tick", "seq", r.Seq, "state", t.state)
		return OutcomeDegenerate
	}

	outcome := OutcomeProjected
	if t.state == Idle {
		tied, ok := Capture(t.cameraPose(), pos.A0, pair.Reference)
		if !ok {
			t.logger.Debug("Camera direction degenerate, capture deferred", "seq", r.Seq)
			return OutcomeDegenerate
		}
		t.tied = tied
		t.state = Tracking
		outcome = OutcomeCaptured
		t.logger.Info("Captured camera in co-rotating frame",
			"position", tied.Position, "direction", tied.Direction, "up", tied.Up)
	}

	pose := t.tied.Project(pos.A, pair.Current)
	t.push(pose)
	r.Pose = pose
	return outcome
}

func (t *Tracker) positions() frame.Positions {
	return frame.Positions{
		A:  t.host.PredictedPosition(t.cfg.BodyA),
		B:  t.host.PredictedPosition(t.cfg.BodyB),
		A0: t.host.Position(t.cfg.BodyA),
		B0: t.host.Position(t.cfg.BodyB),
	}
}

// cameraPose reads the camera from the host, position in object units.
func (t *Tracker) cameraPose() Pose {
	return Pose{
		Position:  t.host.CameraPosition().Mul(1 / t.cfg.CameraUnitScale),
		Direction: t.host.CameraDirection(),
		Up:        t.host.CameraUp(),
	}
}

func (t *Tracker) push(p Pose) {
	t.host.SetCameraPosition(p.Position.Mul(t.cfg.CameraUnitScale), t.cfg.Immediate)
	t.host.SetCameraDirection(p.Direction, t.cfg.Immediate)
	t.host.SetCameraUp(p.Up, t.cfg.Immediate)
}

func (t *Tracker) count(o Outcome) {
	t.ticks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", o.String())))
}
