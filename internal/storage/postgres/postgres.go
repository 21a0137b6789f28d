// Package postgres implements the storage.Backend interface on PostgreSQL
// through the shared GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/internal/database"
	gormstorage "github.com/skytether/libration/internal/storage/gorm"
	"github.com/skytether/libration/pkg/core"
)

// Backend connects lazily in Init.
type Backend struct {
	*gormstorage.Backend
	cfg    config.DBConfig
	logger *slog.Logger
}

// New creates a postgres backend. No connection is made until Init.
func New(cfg config.DBConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Init connects, validates the connection and migrates the schema.
func (b *Backend) Init() error {
	b.logger.Debug("Connecting to Postgres DB", "host", b.cfg.Host, "port", b.cfg.Port, "database", b.cfg.Database)
	db, err := database.GetPostgresDB(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.logger.Info("Connected to database", "host", b.cfg.Host)
	return nil
}

// Close closes the connection if Init succeeded.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// StartSession fails if Init has not connected.
func (b *Backend) StartSession(s *core.Session) error {
	if b.Backend == nil {
		return fmt.Errorf("postgres backend not initialized")
	}
	return b.Backend.StartSession(s)
}

// RecordSamples fails with core.ErrNoSession before Init.
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	if b.Backend == nil {
		return core.ErrNoSession
	}
	return b.Backend.RecordSamples(samples)
}

// EndSession fails with core.ErrNoSession before Init.
func (b *Backend) EndSession() error {
	if b.Backend == nil {
		return core.ErrNoSession
	}
	return b.Backend.EndSession()
}

// Summary returns the path summary of the last ended session.
func (b *Backend) Summary() core.SessionSummary {
	if b.Backend == nil {
		return core.SessionSummary{}
	}
	return b.Backend.Summary()
}
