package rpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skytether/libration/pkg/vec"
)

// HostAdapter implements tracker.Host on a Client. Failed reads are logged
// and answered with the last good value (zero before any), so the tracker
// only ever sees finite numbers. Failed writes are logged and dropped.
type HostAdapter struct {
	client *Client
	logger *slog.Logger

	mu       sync.Mutex
	lastSim  float64
	lastVecs map[string]vec.Vec3
	failures uint64
}

// NewHostAdapter wraps c.
func NewHostAdapter(c *Client, logger *slog.Logger) *HostAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HostAdapter{
		client:   c,
		logger:   logger,
		lastVecs: make(map[string]vec.Vec3),
	}
}

// Client returns the wrapped client.
func (a *HostAdapter) Client() *Client {
	return a.client
}

// Failures returns how many host calls failed.
func (a *HostAdapter) Failures() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures
}

func (a *HostAdapter) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.client.cfg.Timeout)
}

func (a *HostAdapter) fail(op string, err error) {
	a.mu.Lock()
	a.failures++
	a.mu.Unlock()
	a.logger.Warn("Host call failed", "op", op, "error", err)
}

func (a *HostAdapter) SimulationTime() float64 {
	ctx, cancel := a.ctx()
	defer cancel()

	t, err := a.client.SimulationTime(ctx)
	if err != nil {
		a.fail("getSimulationTime", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		a.lastSim = t
	}
	return a.lastSim
}

func (a *HostAdapter) readVec(key string, read func(context.Context) (vec.Vec3, error)) vec.Vec3 {
	ctx, cancel := a.ctx()
	defer cancel()

	v, err := read(ctx)
	if err != nil {
		a.fail(key, err)
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.lastVecs[key]
	}

	a.mu.Lock()
	a.lastVecs[key] = v
	a.mu.Unlock()
	return v
}

func (a *HostAdapter) PredictedPosition(name string) vec.Vec3 {
	return a.readVec("predicted:"+name, func(ctx context.Context) (vec.Vec3, error) {
		return a.client.PredictedPosition(ctx, name)
	})
}

func (a *HostAdapter) Position(name string) vec.Vec3 {
	return a.readVec("position:"+name, func(ctx context.Context) (vec.Vec3, error) {
		return a.client.Position(ctx, name)
	})
}

func (a *HostAdapter) CameraPosition() vec.Vec3 {
	return a.readVec("camera:position", a.client.CameraPosition)
}

func (a *HostAdapter) CameraDirection() vec.Vec3 {
	return a.readVec("camera:direction", a.client.CameraDirection)
}

func (a *HostAdapter) CameraUp() vec.Vec3 {
	return a.readVec("camera:up", a.client.CameraUp)
}

func (a *HostAdapter) write(op string, set func(context.Context) error) {
	ctx, cancel := a.ctx()
	defer cancel()
	if err := set(ctx); err != nil {
		a.fail(op, err)
	}
}

func (a *HostAdapter) SetCameraPosition(v vec.Vec3, immediate bool) {
	a.write("setCameraPosition", func(ctx context.Context) error {
		return a.client.SetCameraPosition(ctx, v, immediate)
	})
}

func (a *HostAdapter) SetCameraDirection(v vec.Vec3, immediate bool) {
	a.write("setCameraDirection", func(ctx context.Context) error {
		return a.client.SetCameraDirection(ctx, v, immediate)
	})
}

// SetCameraUp keeps the host's up vector when v is zero.
func (a *HostAdapter) SetCameraUp(v vec.Vec3, immediate bool) {
	if v == (vec.Vec3{}) {
		a.logger.Debug("Skipping zero camera up vector")
		return
	}
	a.write("setCameraUp", func(ctx context.Context) error {
		return a.client.SetCameraUp(ctx, v, immediate)
	})
}

// The calls below drive a showcase and report their errors.

func (a *HostAdapter) StartSimulationTime() error {
	ctx, cancel := a.ctx()
	defer cancel()
	return a.client.StartSimulationTime(ctx)
}

func (a *HostAdapter) StopSimulationTime() error {
	ctx, cancel := a.ctx()
	defer cancel()
	return a.client.StopSimulationTime(ctx)
}

func (a *HostAdapter) SetSimulationTime(t time.Time) error {
	ctx, cancel := a.ctx()
	defer cancel()
	return a.client.SetSimulationTime(ctx, t)
}

func (a *HostAdapter) SetSimulationPace(pace float64) error {
	ctx, cancel := a.ctx()
	defer cancel()
	return a.client.SetSimulationPace(ctx, pace)
}

func (a *HostAdapter) SetCameraFocus(name string) error {
	ctx, cancel := a.ctx()
	defer cancel()
	return a.client.SetCameraFocus(ctx, name)
}

// Advance is a no-op: the remote host keeps its own clock.
func (a *HostAdapter) Advance(time.Duration) {}

// ParkRunnable forwards to the client.
func (a *HostAdapter) ParkRunnable(name string) error {
	return a.client.ParkRunnable(name)
}

func (a *HostAdapter) UnparkRunnable(name string) error {
	return a.client.UnparkRunnable(name)
}
