// Package frame builds the co-rotating orthonormal basis defined by two
// bodies: r1 points from body A to body B, r2 is normal to the plane swept
// by their relative displacement, r3 completes the right-handed triad.
package frame

import (
	"github.com/skytether/libration/pkg/vec"
)

// Status is the outcome of a frame build.
type Status uint8

const (
	// Static means the bodies did not move relative to each other by more
	// than epsilon; no frame is built.
	Static Status = iota
	// Degenerate means a normalization failed: the bodies are co-located or
	// their displacement is collinear with their separation.
	Degenerate
	// Valid means the frame is orthonormal and usable.
	Valid
)

func (s Status) String() string {
	switch s {
	case Static:
		return "static"
	case Degenerate:
		return "degenerate"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// Frame is a right-handed orthonormal triad.
type Frame struct {
	R1, R2, R3 vec.Vec3
}

// Axis returns axis i (0, 1 or 2).
func (f Frame) Axis(i int) vec.Vec3 {
	switch i {
	case 0:
		return f.R1
	case 1:
		return f.R2
	default:
		return f.R3
	}
}

// Coordinates returns the components of v along the frame axes.
func (f Frame) Coordinates(v vec.Vec3) [3]float64 {
	return [3]float64{vec.Dot(v, f.R1), vec.Dot(v, f.R2), vec.Dot(v, f.R3)}
}

// Compose returns the world vector with coordinates c in this frame.
func (f Frame) Compose(c [3]float64) vec.Vec3 {
	return vec.Combine(c, f.R1, f.R2, f.R3)
}

// Sum returns r1+r2+r3.
func (f Frame) Sum() vec.Vec3 {
	return f.R1.Add(f.R2).Add(f.R3)
}

// Build constructs the frame whose first axis is along sep and whose second
// axis is normal to both sep and disp.
func Build(sep, disp vec.Vec3, eps float64) (Frame, Status) {
	r1, ok := vec.NormalizeEps(sep, eps)
	if !ok {
		return Frame{}, Degenerate
	}
	d, ok := vec.NormalizeEps(disp, eps)
	if !ok {
		return Frame{}, Degenerate
	}
	// collinear displacement leaves nothing to span the plane
	r2, ok := vec.NormalizeEps(vec.Cross(r1, d), eps)
	if !ok {
		return Frame{}, Degenerate
	}
	return Frame{R1: r1, R2: r2, R3: vec.Cross(r1, r2)}, Valid
}
