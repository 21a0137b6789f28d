package frame

import (
	"github.com/skytether/libration/pkg/vec"
)

// Positions is one tick's snapshot of the two tracked bodies. Current is
// the host's predicted position, Reference the last settled one.
type Positions struct {
	A, B   vec.Vec3
	A0, B0 vec.Vec3
}

// Separation returns rBA = B − A.
func (p Positions) Separation() vec.Vec3 {
	return p.B.Sub(p.A)
}

// ReferenceSeparation returns rBA0 = B0 − A0.
func (p Positions) ReferenceSeparation() vec.Vec3 {
	return p.B0.Sub(p.A0)
}

// Displacement returns rBA − rBA0.
func (p Positions) Displacement() vec.Vec3 {
	return p.Separation().Sub(p.ReferenceSeparation())
}

// Pair holds the frames built from the current and the reference
// separation for a single tick.
type Pair struct {
	Current   Frame
	Reference Frame
	Status    Status
}

// Valid reports whether both frames can be used.
func (p Pair) Valid() bool {
	return p.Status == Valid
}

// Moved reports whether the relative displacement is significant against
// the separation: |rBA − rBA0|² / |rBA|² > eps.
func Moved(p Positions, eps float64) bool {
	sepSq := vec.LenSq(p.Separation())
	if !(sepSq > eps) {
		return false
	}
	return vec.LenSq(p.Displacement())/sepSq > eps
}

// BuildPair runs the motion test and, if the bodies moved, builds the
// current and reference frames. The pair is Valid only when both are.
func BuildPair(p Positions, eps float64) Pair {
	rBA := p.Separation()
	if !(vec.LenSq(rBA) > eps) {
		return Pair{Status: Degenerate}
	}
	if !Moved(p, eps) {
		return Pair{Status: Static}
	}

	disp := p.Displacement()
	cur, st := Build(rBA, disp, eps)
	if st != Valid {
		return Pair{Status: st}
	}
	ref, st := Build(p.ReferenceSeparation(), disp, eps)
	if st != Valid {
		return Pair{Status: st}
	}
	return Pair{Current: cur, Reference: ref, Status: Valid}
}
