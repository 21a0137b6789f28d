// Package memory keeps a session's samples in memory and exports them to a
// JSON file when the session ends.
package memory

import (
	"log/slog"
	"sync"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/internal/storage/summary"
	"github.com/skytether/libration/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg    config.MemoryConfig
	logger *slog.Logger

	session *core.Session
	samples []core.TrackSample

	lastExportPath string
	lastSummary    core.SessionSummary
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:    cfg,
		logger: logger,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, dropping anything held
// from a previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.samples = make([]core.TrackSample, 0, 1024)
	return nil
}

// EndSession computes the path summary and exports the session.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}

	b.lastSummary = summary.Build(b.samples)
	if err := b.exportJSON(); err != nil {
		return err
	}

	b.logger.Info("Exported session",
		"path", b.lastExportPath,
		"samples", len(b.samples),
		"relativeDrift", b.lastSummary.RelativeDrift)
	b.session = nil
	b.samples = nil
	return nil
}

// RecordSamples appends a batch.
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	for _, s := range samples {
		s.SessionID = b.session.ID
		b.samples = append(b.samples, s)
	}
	return nil
}

// Samples returns a copy of the samples held for the current session.
func (b *Backend) Samples() []core.TrackSample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.TrackSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Summary returns the path summary of the last ended session.
func (b *Backend) Summary() core.SessionSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSummary
}
