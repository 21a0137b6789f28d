// Package summary digests a session's samples into camera path geometry.
// The tied path is the pushed camera position re-expressed in each tick's
// co-rotating frame; while a capture holds it stays near a single point.
package summary

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/skytether/libration/pkg/core"
	"github.com/skytether/libration/pkg/vec"
)

// Outcome names counted by Build.
const outcomeCaptured = "captured"

// Build computes the summary of samples, which must be in sequence order.
func Build(samples []core.TrackSample) core.SessionSummary {
	var (
		out   core.SessionSummary
		tied  []vec.Vec3
		world []vec.Vec3
	)
	out.Samples = len(samples)

	for _, s := range samples {
		if s.Outcome == outcomeCaptured {
			out.Captures++
		}
		if s.Camera == nil {
			continue
		}
		out.Pushed++

		pos := vec.Vec3(s.Camera.Position)
		world = append(world, pos)
		if s.Axes != nil {
			rel := pos.Sub(vec.Vec3(s.Origin))
			tied = append(tied, vec.New(
				vec.Dot(rel, vec.Vec3(s.Axes.R1)),
				vec.Dot(rel, vec.Vec3(s.Axes.R2)),
				vec.Dot(rel, vec.Vec3(s.Axes.R3)),
			))
		}
	}

	tiedLine := LineString(tied)
	worldLine := LineString(world)
	out.TiedPathWKT = tiedLine.AsText()
	out.WorldPathWKT = worldLine.AsText()
	out.TiedLength = Length(tied)
	out.WorldLength = Length(world)
	if out.WorldLength > 0 {
		out.RelativeDrift = out.TiedLength / out.WorldLength
	}
	return out
}

// LineString builds an XYZ line string. Fewer than two points give an
// empty one.
func LineString(pts []vec.Vec3) geom.LineString {
	if len(pts) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, len(pts)*3)
	for _, p := range pts {
		coords = append(coords, p[0], p[1], p[2])
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXYZ))
}

// Length is the 3D polyline length. geom's Length only measures XY.
func Length(pts []vec.Vec3) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += math.Sqrt(vec.LenSq(pts[i].Sub(pts[i-1])))
	}
	return total
}
