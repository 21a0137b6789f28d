package tracker

import (
	"time"

	"github.com/skytether/libration/pkg/vec"
)

// Host is the synchronous accessor surface of the visualization host.
// Body positions are in the host's object units; camera positions are in
// camera units (object units × Config.CameraUnitScale). Implementations
// must return finite values; lookup failures are the implementation's to
// report.
type Host interface {
	SimulationTime() float64

	// PredictedPosition is the body's position at the current simulation
	// time; Position is the last settled (reference) position.
	PredictedPosition(name string) vec.Vec3
	Position(name string) vec.Vec3

	CameraPosition() vec.Vec3
	CameraDirection() vec.Vec3
	CameraUp() vec.Vec3

	SetCameraPosition(v vec.Vec3, immediate bool)
	SetCameraDirection(v vec.Vec3, immediate bool)

	// SetCameraUp may receive the zero vector. That happens when the
	// captured look direction lies along r1+r2+r3 of the reference frame:
	// the up basis collapses and the tied up coordinates are (0,0).
	// Implementations should keep their previous up vector in that case.
	SetCameraUp(v vec.Vec3, immediate bool)
}

// Clock supplies wall-clock time for the tick gate.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}
