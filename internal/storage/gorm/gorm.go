// Package gormstorage implements storage.Backend on top of any GORM
// dialect. The sqlite and postgres backends wrap it.
package gormstorage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skytether/libration/internal/database"
	"github.com/skytether/libration/internal/model"
	"github.com/skytether/libration/internal/model/convert"
	"github.com/skytether/libration/internal/storage/summary"
	"github.com/skytether/libration/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements storage.Backend with GORM.
type Backend struct {
	deps Dependencies

	mu          sync.Mutex
	session     *model.Session
	lastSummary core.SessionSummary
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend has no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// StartSession inserts the session row.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.mu.Lock()
	b.session = &row
	b.mu.Unlock()

	b.deps.Logger.Info("Session started", "session", s.ID, "bodyA", s.BodyA, "bodyB", s.BodyB)
	return nil
}

// RecordSamples inserts a batch in one statement set.
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	b.mu.Lock()
	sess := b.session
	b.mu.Unlock()
	if sess == nil {
		return core.ErrNoSession
	}
	if len(samples) == 0 {
		return nil
	}

	rows := convert.CoreToTrackSamples(samples)
	for i := range rows {
		rows[i].SessionID = sess.ID
	}

	start := time.Now()
	if err := b.deps.DB.Omit(clause.Associations).CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("failed to insert %d samples: %w", len(rows), err)
	}
	b.deps.Logger.Debug("Inserted samples", "count", len(rows), "duration", time.Since(start))
	return nil
}

// EndSession stamps the end time and stores the camera path summary.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	sess := b.session
	b.session = nil
	b.mu.Unlock()
	if sess == nil {
		return core.ErrNoSession
	}

	samples, err := b.Samples(sess.ID)
	if err != nil {
		return err
	}
	sum := summary.Build(samples)
	raw, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	end := time.Now().UTC()
	err = b.deps.DB.Model(&model.Session{}).
		Where("id = ?", sess.ID).
		Updates(map[string]any{"end_time": end, "summary": datatypes.JSON(raw)}).Error
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	b.mu.Lock()
	b.lastSummary = sum
	b.mu.Unlock()

	b.deps.Logger.Info("Session ended", "session", sess.ID, "samples", sum.Samples, "relativeDrift", sum.RelativeDrift)
	return nil
}

// Samples loads a session's samples in sequence order.
func (b *Backend) Samples(sessionID uuid.UUID) ([]core.TrackSample, error) {
	var rows []model.TrackSample
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}
	out := make([]core.TrackSample, len(rows))
	for i, r := range rows {
		out[i] = convert.TrackSampleToCore(r)
	}
	return out, nil
}

// Sessions lists stored sessions, newest first.
func (b *Backend) Sessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.deps.DB.Order("start_time DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.Session, len(rows))
	for i, r := range rows {
		out[i] = convert.SessionToCore(r)
	}
	return out, nil
}

// Summary returns the path summary of the last ended session.
func (b *Backend) Summary() core.SessionSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSummary
}
