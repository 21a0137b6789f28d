// Package sim is an in-process host. It moves the Earth and the Moon along
// analytical ephemerides and keeps a free camera that the tracker can read
// and steer.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skytether/libration/pkg/vec"
)

// J2000 is the epoch SimulationTime counts from.
var J2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// Config controls a Host.
type Config struct {
	Start time.Time
	// Pace is simulated seconds per wall second.
	Pace float64
	// CameraUnitScale converts Mm to camera units.
	CameraUnitScale float64
}

// Host implements tracker.Host. Current positions are evaluated at the
// simulation time, reference positions at the time of the previous Advance.
type Host struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	now       time.Time
	running   bool
	current   map[string]vec.Vec3
	reference map[string]vec.Vec3

	camPos vec.Vec3
	camDir vec.Vec3
	camUp  vec.Vec3
}

// New creates a stopped host at cfg.Start. The camera starts at the origin
// looking along +x with +z up.
func New(cfg Config, logger *slog.Logger) (*Host, error) {
	if cfg.CameraUnitScale <= 0 {
		return nil, fmt.Errorf("camera unit scale must be positive, got %g", cfg.CameraUnitScale)
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		cfg:    cfg,
		logger: logger,
		camDir: vec.New(1, 0, 0),
		camUp:  vec.New(0, 0, 1),
	}
	h.setTime(cfg.Start)
	return h, nil
}

func (h *Host) setTime(t time.Time) {
	h.now = t.UTC()
	h.current = positions(h.now)
	h.reference = h.current
}

func positions(t time.Time) map[string]vec.Vec3 {
	out := make(map[string]vec.Vec3, len(Bodies))
	for _, name := range Bodies {
		p, _ := Ephemeris(name, t)
		out[name] = p
	}
	return out
}

// Advance steps the simulation by pace × wall while running. Reference
// positions always move to the previous current ones, so a stopped host
// reports identical current and reference positions.
func (h *Host) Advance(wall time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reference = h.current
	if !h.running {
		return
	}
	h.now = h.now.Add(time.Duration(float64(wall) * h.cfg.Pace))
	h.current = positions(h.now)
}

// Time returns the simulation time.
func (h *Host) Time() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Running reports whether simulation time flows.
func (h *Host) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// StartSimulationTime lets simulation time flow on Advance.
func (h *Host) StartSimulationTime() error {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	h.logger.Info("Simulation time started", "time", h.Time())
	return nil
}

// StopSimulationTime freezes simulation time.
func (h *Host) StopSimulationTime() error {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	h.logger.Info("Simulation time stopped", "time", h.Time())
	return nil
}

// SetSimulationTime jumps to t.
func (h *Host) SetSimulationTime(t time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setTime(t)
	return nil
}

// SetSimulationPace sets simulated seconds per wall second.
func (h *Host) SetSimulationPace(pace float64) error {
	if pace <= 0 {
		return fmt.Errorf("pace must be positive, got %g", pace)
	}
	h.mu.Lock()
	h.cfg.Pace = pace
	h.mu.Unlock()
	return nil
}

// SetCameraFocus points the camera at a body, keeping up orthogonal.
func (h *Host) SetCameraFocus(name string) error {
	target, err := h.Lookup(name)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	dir, ok := vec.Normalize(target.Sub(h.camPos.Mul(1 / h.cfg.CameraUnitScale)))
	if !ok {
		return errors.New("camera is at the focus body")
	}
	h.camDir = dir
	if up, ok := vec.Normalize(vec.Cross(vec.Cross(dir, h.camUp), dir)); ok {
		h.camUp = up
	}
	return nil
}

// Lookup returns a body's current position.
func (h *Host) Lookup(name string) (vec.Vec3, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.current[name]
	if !ok {
		return vec.Vec3{}, fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}
	return p, nil
}

// SimulationTime returns seconds since J2000.
func (h *Host) SimulationTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now.Sub(J2000).Seconds()
}

// PredictedPosition returns the current position, zero for unknown bodies.
func (h *Host) PredictedPosition(name string) vec.Vec3 {
	return h.body(h.current, name)
}

// Position returns the reference position, zero for unknown bodies.
func (h *Host) Position(name string) vec.Vec3 {
	return h.body(h.reference, name)
}

func (h *Host) body(set map[string]vec.Vec3, name string) vec.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := set[name]
	if !ok {
		h.logger.Warn("Position of unknown body requested", "body", name)
	}
	return p
}

func (h *Host) CameraPosition() vec.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.camPos
}

func (h *Host) CameraDirection() vec.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.camDir
}

func (h *Host) CameraUp() vec.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.camUp
}

// SetCameraPosition moves the camera. The sim has no smoothing, so
// immediate is ignored.
func (h *Host) SetCameraPosition(v vec.Vec3, _ bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.camPos = v
}

// SetCameraDirection normalizes v. A zero vector leaves the direction
// unchanged.
func (h *Host) SetCameraDirection(v vec.Vec3, _ bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := vec.Normalize(v); ok {
		h.camDir = d
	}
}

func (h *Host) SetCameraUp(v vec.Vec3, _ bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if u, ok := vec.Normalize(v); ok {
		h.camUp = u
	}
}
