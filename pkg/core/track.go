// Package core holds the storage-facing types shared by every backend.
package core

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Vec3 is a plain Cartesian triple in object units.
type Vec3 [3]float64

// Session is one tracking run between two bodies.
type Session struct {
	ID              uuid.UUID
	Name            string
	BodyA           string
	BodyB           string
	Host            string
	StartTime       time.Time
	EndTime         time.Time
	SimStart        float64
	Interval        time.Duration
	CameraUnitScale float64
}

// Axes is an orthonormal frame.
type Axes struct {
	R1 Vec3 `json:"r1"`
	R2 Vec3 `json:"r2"`
	R3 Vec3 `json:"r3"`
}

// TiedCoords is a camera pose expressed in a co-rotating frame.
type TiedCoords struct {
	Position  Vec3       `json:"position"`
	Direction Vec3       `json:"direction"`
	Up        [2]float64 `json:"up"`
}

// CameraPose is a camera pose in world coordinates.
type CameraPose struct {
	Position  Vec3 `json:"position"`
	Direction Vec3 `json:"direction"`
	Up        Vec3 `json:"up"`
}

// TrackSample records one processed tracker tick.
type TrackSample struct {
	SessionID uuid.UUID
	Seq       uint64
	Time      time.Time
	SimTime   float64
	SimDelta  float64
	State     string
	Outcome   string

	// FrameStatus is the co-rotating frame status, empty when the tick
	// never built one.
	FrameStatus string
	// Axes is the current frame. Nil unless FrameStatus is valid.
	Axes *Axes

	// Tied is the held capture, zero while idle.
	Tied TiedCoords
	// Camera is the pose pushed to the host. Nil when nothing was pushed.
	Camera *CameraPose
	// Origin is the position of the first body at this tick.
	Origin Vec3
}

// Pushed reports whether the sample wrote a camera pose.
func (s TrackSample) Pushed() bool {
	return s.Camera != nil
}

// SessionSummary is the camera path digest computed when a session ends.
type SessionSummary struct {
	Samples       int     `json:"samples"`
	Pushed        int     `json:"pushed"`
	Captures      int     `json:"captures"`
	TiedPathWKT   string  `json:"tiedPathWkt"`
	TiedLength    float64 `json:"tiedLength"`
	WorldPathWKT  string  `json:"worldPathWkt"`
	WorldLength   float64 `json:"worldLength"`
	RelativeDrift float64 `json:"relativeDrift"`
}

// ErrNoSession is returned when samples arrive outside a session.
var ErrNoSession = errors.New("no active session")
