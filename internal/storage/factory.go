package storage

import (
	"fmt"
	"log/slog"

	"github.com/skytether/libration/internal/config"
	influxstorage "github.com/skytether/libration/internal/storage/influx"
	"github.com/skytether/libration/internal/storage/memory"
	"github.com/skytether/libration/internal/storage/postgres"
	sqlitestorage "github.com/skytether/libration/internal/storage/sqlite"
	"github.com/skytether/libration/pkg/core"
)

// Dependencies carries the settings of backends that live outside the
// storage section.
type Dependencies struct {
	DB     config.DBConfig
	Influx config.InfluxConfig
	Logger *slog.Logger
}

// New creates a storage backend based on configuration. The backend is not
// initialized.
func New(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case config.StorageMemory:
		return memory.New(cfg.Memory, logger), nil
	case config.StorageSQLite:
		return sqlitestorage.New(sqlitestorage.Config{
			DumpPath:     cfg.SQLite.DumpPath,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, logger)
	case config.StoragePostgres:
		return postgres.New(deps.DB, logger), nil
	case config.StorageInflux:
		return influxstorage.New(deps.Influx, logger), nil
	case config.StorageNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownStorage, cfg.Type)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Init() error                            { return nil }
func (Nop) Close() error                           { return nil }
func (Nop) StartSession(*core.Session) error       { return nil }
func (Nop) EndSession() error                      { return nil }
func (Nop) RecordSamples([]core.TrackSample) error { return nil }
