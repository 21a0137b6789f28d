// Package vec provides the float64 3D vector helpers used by the tracker.
// Vectors are mgl64 values; the helpers here add the epsilon-guarded
// normalization every frame computation relies on.
package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the squared-length threshold below which a vector is treated
// as degenerate.
const Epsilon = 1e-32

// Vec3 is a three component float64 vector.
type Vec3 = mgl64.Vec3

// New returns the vector (x, y, z).
func New(x, y, z float64) Vec3 {
	return Vec3{x, y, z}
}

// Dot returns a · b.
func Dot(a, b Vec3) float64 {
	return a.Dot(b)
}

// Cross returns a × b.
func Cross(a, b Vec3) Vec3 {
	return a.Cross(b)
}

// LenSq returns |v|².
func LenSq(v Vec3) float64 {
	return v.Dot(v)
}

// Normalize returns v/|v|. The second result is false when |v|² ≤ Epsilon,
// in which case the returned vector is zero and must not be used.
func Normalize(v Vec3) (Vec3, bool) {
	return NormalizeEps(v, Epsilon)
}

// NormalizeEps is Normalize with an explicit threshold.
func NormalizeEps(v Vec3, eps float64) (Vec3, bool) {
	sq := LenSq(v)
	if !(sq > eps) || math.IsInf(sq, 0) {
		return Vec3{}, false
	}
	return v.Mul(1 / math.Sqrt(sq)), true
}

// Combine returns c[0]·a + c[1]·b + c[2]·c.
func Combine(coeffs [3]float64, a, b, c Vec3) Vec3 {
	return a.Mul(coeffs[0]).Add(b.Mul(coeffs[1])).Add(c.Mul(coeffs[2]))
}

// Finite reports whether every component is a finite number.
func Finite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// FromSlice builds a vector from the first three elements of s. Missing
// components are zero.
func FromSlice(s []float64) Vec3 {
	var v Vec3
	copy(v[:], s)
	return v
}
