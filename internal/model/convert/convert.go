package convert

import (
	"encoding/json"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/skytether/libration/internal/model"
	"github.com/skytether/libration/pkg/core"
)

// pointToVec converts an XYZ geom.Point to a core.Vec3. Empty points give zero.
func pointToVec(p geom.Point) core.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}
	}
	return core.Vec3{coord.XY.X, coord.XY.Y, coord.Z}
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	c := core.Session{
		ID:              s.ID,
		Name:            s.Name,
		BodyA:           s.BodyA,
		BodyB:           s.BodyB,
		Host:            s.Host,
		StartTime:       s.StartTime,
		SimStart:        s.SimStart,
		Interval:        time.Duration(s.IntervalMs) * time.Millisecond,
		CameraUnitScale: s.CameraUnitScale,
	}
	if s.EndTime != nil {
		c.EndTime = *s.EndTime
	}
	return c
}

// TrackSampleToCore converts a GORM TrackSample to a core.TrackSample.
func TrackSampleToCore(s model.TrackSample) core.TrackSample {
	c := core.TrackSample{
		SessionID:   s.SessionID,
		Seq:         s.Seq,
		Time:        s.Time,
		SimTime:     s.SimTime,
		SimDelta:    s.SimDelta,
		State:       s.State,
		Outcome:     s.Outcome,
		FrameStatus: s.FrameStatus,
		Origin:      pointToVec(s.Origin),
	}
	if len(s.Axes) > 0 {
		_ = json.Unmarshal(s.Axes, &c.Axes)
	}
	if len(s.Tied) > 0 {
		_ = json.Unmarshal(s.Tied, &c.Tied)
	}
	if s.Pushed {
		cam := &core.CameraPose{Position: pointToVec(s.CameraPosition)}
		_ = json.Unmarshal(s.CameraDirection, &cam.Direction)
		_ = json.Unmarshal(s.CameraUp, &cam.Up)
		c.Camera = cam
	}
	return c
}
