// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/skytether/libration/internal/model"
	"github.com/skytether/libration/pkg/core"
)

// vecToPoint converts a core.Vec3 to an XYZ geom.Point
func vecToPoint(v core.Vec3) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v[0], Y: v[1]}, Z: v[2], Type: geom.DimXYZ}
	return geom.NewPoint(coords)
}

// toJSON marshals v, falling back to JSON null.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	m := model.Session{
		ID:              s.ID,
		Name:            s.Name,
		BodyA:           s.BodyA,
		BodyB:           s.BodyB,
		Host:            s.Host,
		StartTime:       s.StartTime,
		SimStart:        s.SimStart,
		IntervalMs:      s.Interval.Milliseconds(),
		CameraUnitScale: s.CameraUnitScale,
		Summary:         datatypes.JSON("null"),
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		m.EndTime = &end
	}
	return m
}

// CoreToTrackSample converts a core.TrackSample to a GORM model.TrackSample.
func CoreToTrackSample(s core.TrackSample) model.TrackSample {
	m := model.TrackSample{
		SessionID:   s.SessionID,
		Seq:         s.Seq,
		Time:        s.Time,
		SimTime:     s.SimTime,
		SimDelta:    s.SimDelta,
		State:       s.State,
		Outcome:     s.Outcome,
		FrameStatus: s.FrameStatus,
		Axes:        toJSON(s.Axes),
		Tied:        toJSON(s.Tied),
		Origin:      vecToPoint(s.Origin),
		Pushed:      s.Pushed(),
	}
	if s.Camera != nil {
		m.CameraPosition = vecToPoint(s.Camera.Position)
		m.CameraDirection = toJSON(s.Camera.Direction)
		m.CameraUp = toJSON(s.Camera.Up)
	} else {
		m.CameraDirection = datatypes.JSON("null")
		m.CameraUp = datatypes.JSON("null")
	}
	return m
}

// CoreToTrackSamples converts a batch.
func CoreToTrackSamples(in []core.TrackSample) []model.TrackSample {
	out := make([]model.TrackSample, len(in))
	for i, s := range in {
		out[i] = CoreToTrackSample(s)
	}
	return out
}
