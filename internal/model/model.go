package model

import (
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&TrackSample{},
}

// Session is one tracking run
type Session struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	Name            string         `json:"name" gorm:"size:127"`
	BodyA           string         `json:"bodyA" gorm:"size:64;NOT NULL"`
	BodyB           string         `json:"bodyB" gorm:"size:64;NOT NULL"`
	Host            string         `json:"host" gorm:"size:16"`
	StartTime       time.Time      `json:"startTime" gorm:"index:idx_session_start_time"`
	EndTime         *time.Time     `json:"endTime"`
	SimStart        float64        `json:"simStart"`
	IntervalMs      int64          `json:"intervalMs"`
	CameraUnitScale float64        `json:"cameraUnitScale"`
	Summary         datatypes.JSON `json:"summary"` // camera path digest, set when the session ends
}

func (*Session) TableName() string {
	return "sessions"
}

// TrackSample is one processed tracker tick
type TrackSample struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID   uuid.UUID `json:"sessionId" gorm:"type:uuid;index:idx_tracksample_session_id"`
	Session     Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Seq         uint64    `json:"seq" gorm:"index:idx_tracksample_seq"`
	Time        time.Time `json:"time"`
	SimTime     float64   `json:"simTime"`
	SimDelta    float64   `json:"simDelta"`
	State       string    `json:"state" gorm:"size:16"`
	Outcome     string    `json:"outcome" gorm:"size:16"`
	FrameStatus string    `json:"frameStatus" gorm:"size:16"`

	Axes   datatypes.JSON `json:"axes"`   // current frame r1, r2, r3; null when not valid
	Tied   datatypes.JSON `json:"tied"`   // held capture in frame coordinates
	Origin geom.Point     `json:"origin"` // first body position (XYZ)

	Pushed          bool           `json:"pushed" gorm:"default:false"`
	CameraPosition  geom.Point     `json:"cameraPosition"` // pushed position in object units (XYZ), empty when not pushed
	CameraDirection datatypes.JSON `json:"cameraDirection"`
	CameraUp        datatypes.JSON `json:"cameraUp"`
}

func (*TrackSample) TableName() string {
	return "track_samples"
}
