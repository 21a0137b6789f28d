package tracker

import (
	"github.com/skytether/libration/internal/frame"
	"github.com/skytether/libration/pkg/vec"
)

// Pose is a camera pose in world space, position in object units.
type Pose struct {
	Position  vec.Vec3
	Direction vec.Vec3
	Up        vec.Vec3
}

// TiedPose is a camera pose frozen in the co-rotating frame. Position is
// the offset from body A and Direction the unit look direction, both as
// coordinates along (r1, r2, r3). Up holds the up vector's coordinates
// along the auxiliary pair returned by UpBasis.
type TiedPose struct {
	Position  [3]float64 `json:"position"`
	Direction [3]float64 `json:"direction"`
	Up        [2]float64 `json:"up"`
}

// UpBasis returns the auxiliary pair (u1, u2) spanning the plane normal to
// dir, seeded by the helper vector r1+r2+r3. When dir is parallel to the
// helper the pair collapses to zero vectors.
func UpBasis(f frame.Frame, dir vec.Vec3) (u1, u2 vec.Vec3) {
	ra, _ := vec.Normalize(f.Sum())
	u1, _ = vec.Normalize(vec.Cross(ra, dir))
	u2, _ = vec.Normalize(vec.Cross(u1, dir))
	return u1, u2
}

// Capture expresses p in frame f relative to origin. It fails only when
// the camera direction cannot be normalized.
func Capture(p Pose, origin vec.Vec3, f frame.Frame) (TiedPose, bool) {
	dir, ok := vec.Normalize(p.Direction)
	if !ok {
		return TiedPose{}, false
	}

	u1, u2 := UpBasis(f, dir)
	return TiedPose{
		Position:  f.Coordinates(p.Position.Sub(origin)),
		Direction: f.Coordinates(dir),
		Up:        [2]float64{vec.Dot(u1, p.Up), vec.Dot(u2, p.Up)},
	}, true
}

// Project rebuilds the world pose from the frozen coordinates, the frame f
// and the current origin.
func (t TiedPose) Project(origin vec.Vec3, f frame.Frame) Pose {
	dir := f.Compose(t.Direction)
	if n, ok := vec.Normalize(dir); ok {
		dir = n
	}

	u1, u2 := UpBasis(f, dir)
	return Pose{
		Position:  f.Compose(t.Position).Add(origin),
		Direction: dir,
		Up:        u1.Mul(t.Up[0]).Add(u2.Mul(t.Up[1])),
	}
}
