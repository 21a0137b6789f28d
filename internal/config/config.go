// Package config loads libration.cfg.json through viper and exposes typed
// views of its sections.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/skytether/libration/internal/tracker"
)

// FileName is the config file looked up in the config directory.
const FileName = "libration.cfg.json"

var (
	ErrUnknownStorage = errors.New("unknown storage type")
	ErrUnknownHost    = errors.New("unknown host type")
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageInflux   = "influx"
	StorageNone     = "none"
)

// Host kinds.
const (
	HostSim = "sim"
	HostRPC = "rpc"
)

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite storage backend settings
type SQLiteConfig struct {
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the sample sink.
type StorageConfig struct {
	Type          string
	FlushInterval time.Duration
	Memory        MemoryConfig
	SQLite        SQLiteConfig
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// InfluxConfig holds influxdb connection settings.
type InfluxConfig struct {
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// URL returns the server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// SimConfig drives the in-process host.
type SimConfig struct {
	Start time.Time
	Pace  float64
	FPS   int
}

// HostConfig selects the host the tracker talks to.
type HostConfig struct {
	Type    string
	URL     string
	Secret  string
	Timeout time.Duration
	Sim     SimConfig
}

// ShowcaseConfig controls the libration showcase run.
type ShowcaseConfig struct {
	Duration       time.Duration
	CameraFraction float64
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
	MetricsFile  string
	MetricPeriod time.Duration
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("logFormat", "text")
	viper.SetDefault("logConsole", true)

	viper.SetDefault("tracker.bodyA", "Earth")
	viper.SetDefault("tracker.bodyB", "Moon")
	viper.SetDefault("tracker.interval", "100ms")
	viper.SetDefault("tracker.epsilon", 1e-32)
	viper.SetDefault("tracker.cameraUnitScale", 1e6)
	viper.SetDefault("tracker.immediate", true)

	viper.SetDefault("host.type", HostSim)
	viper.SetDefault("host.url", "ws://localhost:4680/rpc")
	viper.SetDefault("host.secret", "")
	viper.SetDefault("host.timeout", "2s")

	viper.SetDefault("sim.start", "2022-09-29T00:00:00Z")
	viper.SetDefault("sim.pace", 5e5)
	viper.SetDefault("sim.fps", 60)

	viper.SetDefault("showcase.duration", "30s")
	viper.SetDefault("showcase.cameraFraction", 7.0/400.0)

	viper.SetDefault("storage.type", StorageMemory)
	viper.SetDefault("storage.flushInterval", "1s")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/libration.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "libration")
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "libration")
	viper.SetDefault("influx.bucket", "tracking")
	viper.SetDefault("influx.backupDir", "./recordings")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "libration")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricsFile", "")
	viper.SetDefault("otel.metricPeriod", "30s")
}

// Load sets default values and reads the config. path is either the
// directory holding libration.cfg.json or the file itself.
func Load(path string) error {
	setDefaults()

	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(FileName)
		viper.AddConfigPath(path)
	}
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// LoadDefaults sets default values only.
func LoadDefaults() {
	setDefaults()
}

// IsNotFound reports whether err means no config file was found.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

// Validate checks the enumerated keys.
func Validate() error {
	switch t := viper.GetString("storage.type"); t {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageInflux, StorageNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, t)
	}
	switch t := viper.GetString("host.type"); t {
	case HostSim, HostRPC:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownHost, t)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetTrackerConfig returns the tracker section.
func GetTrackerConfig() tracker.Config {
	return tracker.Config{
		BodyA:           viper.GetString("tracker.bodyA"),
		BodyB:           viper.GetString("tracker.bodyB"),
		Interval:        viper.GetDuration("tracker.interval"),
		Epsilon:         viper.GetFloat64("tracker.epsilon"),
		CameraUnitScale: viper.GetFloat64("tracker.cameraUnitScale"),
		Immediate:       viper.GetBool("tracker.immediate"),
	}
}

// GetHostConfig returns the host and sim sections.
func GetHostConfig() HostConfig {
	return HostConfig{
		Type:    viper.GetString("host.type"),
		URL:     viper.GetString("host.url"),
		Secret:  viper.GetString("host.secret"),
		Timeout: viper.GetDuration("host.timeout"),
		Sim: SimConfig{
			Start: viper.GetTime("sim.start").UTC(),
			Pace:  viper.GetFloat64("sim.pace"),
			FPS:   viper.GetInt("sim.fps"),
		},
	}
}

// GetShowcaseConfig returns the showcase section.
func GetShowcaseConfig() ShowcaseConfig {
	return ShowcaseConfig{
		Duration:       viper.GetDuration("showcase.duration"),
		CameraFraction: viper.GetFloat64("showcase.cameraFraction"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetDBConfig returns the postgres section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
		SSLMode:  viper.GetString("db.sslmode"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
		MetricsFile:  viper.GetString("otel.metricsFile"),
		MetricPeriod: viper.GetDuration("otel.metricPeriod"),
	}
}
