// Package storage defines the sink for tracker samples and selects a
// backend from configuration.
package storage

import "github.com/skytether/libration/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// RecordSamples stores a batch in order. It fails with core.ErrNoSession
	// outside a session.
	RecordSamples(samples []core.TrackSample) error
}

// Exporter is an optional interface for backends that write a file when a
// session ends.
type Exporter interface {
	GetExportedFilePath() string
}

// Summarizer is an optional interface for backends that keep the camera
// path digest of the last session.
type Summarizer interface {
	Summary() core.SessionSummary
}
