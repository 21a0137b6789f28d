// Package showcase runs the lunar libration demonstration: it parks the
// camera tracker on a host, lets simulated time run for a while and
// records every tick.
package showcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skytether/libration/internal/recorder"
	"github.com/skytether/libration/internal/runner"
	"github.com/skytether/libration/internal/session"
	"github.com/skytether/libration/internal/tracker"
	"github.com/skytether/libration/pkg/core"
)

// RunnableName is the name the tracker is parked under.
const RunnableName = "camera-updater"

// Host is a tracker.Host that also lets the showcase drive simulated time
// and the camera focus.
type Host interface {
	tracker.Host

	StartSimulationTime() error
	StopSimulationTime() error
	SetSimulationTime(t time.Time) error
	SetSimulationPace(pace float64) error
	SetCameraFocus(name string) error

	// Advance is called before every frame with the wall time since the
	// previous one.
	Advance(wall time.Duration)
}

// Notifier is implemented by hosts that want to hear about parked
// runnables.
type Notifier interface {
	ParkRunnable(name string) error
	UnparkRunnable(name string) error
}

// Config controls a run.
type Config struct {
	Name     string
	HostType string
	Tracker  tracker.Config

	Start    time.Time
	Pace     float64
	FPS      int
	Duration time.Duration

	// CameraFraction places the camera on the A→B segment, as a fraction
	// of the separation measured from A.
	CameraFraction float64
}

// Dependencies holds all dependencies for a run
type Dependencies struct {
	Host     Host
	Recorder *recorder.Recorder
	Session  *session.Context
	Logger   *slog.Logger
}

// PlaceCamera puts the camera at fraction of the way from bodyA to bodyB
// and focuses it on bodyB.
func PlaceCamera(h Host, bodyA, bodyB string, fraction, scale float64) error {
	a := h.PredictedPosition(bodyA)
	b := h.PredictedPosition(bodyB)
	pos := b.Sub(a).Mul(fraction).Add(a)
	h.SetCameraPosition(pos.Mul(scale), true)
	return h.SetCameraFocus(bodyB)
}

// Run performs one showcase and returns the recorded session. Cleanup
// (stopping time, unparking, ending the session) runs even when ctx is
// canceled early.
func Run(ctx context.Context, cfg Config, deps Dependencies) (*core.Session, error) {
	if deps.Host == nil || deps.Recorder == nil {
		return nil, errors.New("showcase needs a host and a recorder")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	log := deps.Logger
	h := deps.Host

	if err := h.StopSimulationTime(); err != nil {
		return nil, fmt.Errorf("stopping simulation time: %w", err)
	}
	if err := h.SetSimulationTime(cfg.Start); err != nil {
		return nil, fmt.Errorf("setting simulation time: %w", err)
	}
	if err := h.SetSimulationPace(cfg.Pace); err != nil {
		return nil, fmt.Errorf("setting simulation pace: %w", err)
	}
	if err := PlaceCamera(h, cfg.Tracker.BodyA, cfg.Tracker.BodyB, cfg.CameraFraction, cfg.Tracker.CameraUnitScale); err != nil {
		return nil, fmt.Errorf("placing camera: %w", err)
	}
	log.Info("Camera placed", "fraction", cfg.CameraFraction, "focus", cfg.Tracker.BodyB)

	sess := &core.Session{
		ID:              uuid.New(),
		Name:            cfg.Name,
		BodyA:           cfg.Tracker.BodyA,
		BodyB:           cfg.Tracker.BodyB,
		Host:            cfg.HostType,
		StartTime:       time.Now().UTC(),
		SimStart:        h.SimulationTime(),
		Interval:        cfg.Tracker.Interval,
		CameraUnitScale: cfg.Tracker.CameraUnitScale,
	}
	if err := deps.Recorder.Begin(sess); err != nil {
		return nil, err
	}
	deps.Session.Set(sess)
	defer deps.Session.Clear()

	tr, err := tracker.New(h, cfg.Tracker,
		tracker.WithLogger(log),
		tracker.WithObserver(deps.Recorder),
	)
	if err != nil {
		return nil, errors.Join(err, deps.Recorder.End())
	}

	rn, err := runner.New(log)
	if err != nil {
		return nil, errors.Join(err, deps.Recorder.End())
	}
	if err := rn.Park(RunnableName, tr, runner.Logged()); err != nil {
		return nil, errors.Join(err, deps.Recorder.End())
	}
	notifier, _ := h.(Notifier)
	if notifier != nil {
		if err := notifier.ParkRunnable(RunnableName); err != nil {
			log.Warn("Host did not accept park notification", "error", err)
		}
	}

	if err := h.StartSimulationTime(); err != nil {
		return nil, errors.Join(fmt.Errorf("starting simulation time: %w", err), deps.Recorder.End())
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	loopErr := rn.Loop(runCtx, cfg.FPS, h.Advance)
	cancel()

	var errs []error
	if loopErr != nil {
		errs = append(errs, loopErr)
	}
	if err := h.StopSimulationTime(); err != nil {
		errs = append(errs, fmt.Errorf("stopping simulation time: %w", err))
	}
	if err := rn.Unpark(RunnableName); err != nil {
		errs = append(errs, err)
	}
	if notifier != nil {
		if err := notifier.UnparkRunnable(RunnableName); err != nil {
			log.Warn("Host did not accept unpark notification", "error", err)
		}
	}
	if err := deps.Recorder.End(); err != nil {
		errs = append(errs, err)
	}
	sess.EndTime = time.Now().UTC()

	log.Info("Showcase finished",
		"frames", rn.Frame(),
		"state", tr.State(),
		"dropped", deps.Recorder.Dropped(),
	)
	return sess, errors.Join(errs...)
}
