// Package influx implements storage.Backend on InfluxDB v2. When the server
// cannot be reached at Init, points go to a gzipped line protocol backup
// file instead.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/pkg/core"
)

// Measurements written by the backend.
const (
	MeasurementSample  = "track_sample"
	MeasurementSession = "track_session"
)

const retentionSeconds = 60 * 60 * 24 * 90 // 90 days

// Backend writes samples as points.
type Backend struct {
	cfg    config.InfluxConfig
	logger *slog.Logger

	client  influxdb2.Client
	writer  influxdb2_api.WriteAPI
	isValid bool

	backupFile   *os.File
	backupWriter *gzip.Writer
	backupPath   string

	mu      sync.Mutex
	session *core.Session
	errWG   sync.WaitGroup
}

// New creates an influx backend. No connection is made until Init.
func New(cfg config.InfluxConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Init connects and ensures the org and bucket exist, or opens the backup
// file when the server is unreachable.
func (b *Backend) Init() error {
	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	running, err := b.client.Ping(ctx)
	if err != nil || !running {
		b.logger.Warn("InfluxDB unreachable, writing to backup file", "url", b.cfg.URL(), "error", err)
		return b.openBackup()
	}

	if err := b.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	b.writer = b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	b.errWG.Add(1)
	go func(errorsCh <-chan error) {
		defer b.errWG.Done()
		for writeErr := range errorsCh {
			b.logger.Error("Error sending data to InfluxDB", "bucket", b.cfg.Bucket, "error", writeErr)
		}
	}(b.writer.Errors())

	b.isValid = true
	b.logger.Info("InfluxDB client initialized", "url", b.cfg.URL(), "bucket", b.cfg.Bucket)
	return nil
}

func (b *Backend) openBackup() error {
	dir := b.cfg.BackupDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	b.backupPath = filepath.Join(dir, fmt.Sprintf("influx_backup_%s.lp.gz", time.Now().UTC().Format("20060102_150405")))

	f, err := os.OpenFile(b.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = f
	b.backupWriter = gzip.NewWriter(f)
	return nil
}

func (b *Backend) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := b.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, b.cfg.Org)
	if err != nil {
		b.logger.Info("Organization not found, creating", "org", b.cfg.Org)
		org, err = orgs.CreateOrganizationWithName(ctx, b.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %q: %w", b.cfg.Org, err)
		}
	}

	if _, err := b.client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err != nil {
		b.logger.Info("Bucket not found, creating", "bucket", b.cfg.Bucket)
		rule := domain.RetentionRuleTypeExpire
		_, err = b.client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %q: %w", b.cfg.Bucket, err)
		}
	}
	return nil
}

// BackupPath returns the backup file path, empty while connected.
func (b *Backend) BackupPath() string {
	return b.backupPath
}

// GetExportedFilePath returns the backup file when one is in use.
func (b *Backend) GetExportedFilePath() string {
	return b.backupPath
}

// StartSession writes a session start point.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
	return b.writePoint(SessionPoint(s, "start", s.StartTime))
}

// RecordSamples writes one point per sample.
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil {
		return core.ErrNoSession
	}
	for _, smp := range samples {
		if err := b.writePoint(SamplePoint(s, smp)); err != nil {
			return err
		}
	}
	return nil
}

// EndSession writes a session end point and flushes.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	s := b.session
	b.session = nil
	b.mu.Unlock()
	if s == nil {
		return core.ErrNoSession
	}

	if err := b.writePoint(SessionPoint(s, "end", time.Now().UTC())); err != nil {
		return err
	}
	return b.flush()
}

// Close flushes and releases the client or backup file.
func (b *Backend) Close() error {
	var err error
	if b.writer != nil {
		b.writer.Flush()
	}
	if b.client != nil {
		b.client.Close()
		b.errWG.Wait()
	}
	if b.backupWriter != nil {
		err = b.backupWriter.Close()
		if cerr := b.backupFile.Close(); err == nil {
			err = cerr
		}
		b.backupWriter = nil
	}
	return err
}

func (b *Backend) flush() error {
	if b.isValid {
		b.writer.Flush()
		return nil
	}
	if b.backupWriter != nil {
		return b.backupWriter.Flush()
	}
	return nil
}

func (b *Backend) writePoint(p *influxdb2_write.Point) error {
	if b.isValid {
		b.writer.WritePoint(p)
		return nil
	}
	if b.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := b.backupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// SessionPoint marks a session boundary.
func SessionPoint(s *core.Session, event string, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(MeasurementSession,
		map[string]string{
			"session": s.ID.String(),
			"bodyA":   s.BodyA,
			"bodyB":   s.BodyB,
			"host":    s.Host,
		},
		map[string]interface{}{
			"event":           event,
			"name":            s.Name,
			"intervalMs":      s.Interval.Milliseconds(),
			"cameraUnitScale": s.CameraUnitScale,
		},
		at)
}

// SamplePoint converts a sample. Camera fields are present only when the
// tick pushed a pose.
func SamplePoint(s *core.Session, smp core.TrackSample) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementSample).
		AddTag("session", s.ID.String()).
		AddTag("bodyA", s.BodyA).
		AddTag("bodyB", s.BodyB).
		AddTag("outcome", smp.Outcome).
		AddTag("state", smp.State).
		AddField("seq", smp.Seq).
		AddField("simTime", smp.SimTime).
		AddField("simDelta", smp.SimDelta).
		SetTime(smp.Time)

	if smp.FrameStatus != "" {
		p.AddField("frameStatus", smp.FrameStatus)
	}
	addVec(p, "tied", smp.Tied.Position)
	addVec(p, "tiedDir", smp.Tied.Direction)
	p.AddField("tiedUp1", smp.Tied.Up[0])
	p.AddField("tiedUp2", smp.Tied.Up[1])
	addVec(p, "origin", smp.Origin)
	if smp.Camera != nil {
		addVec(p, "cam", smp.Camera.Position)
		addVec(p, "camDir", smp.Camera.Direction)
		addVec(p, "camUp", smp.Camera.Up)
	}
	return p
}

func addVec(p *influxdb2_write.Point, prefix string, v core.Vec3) {
	p.AddField(prefix+"X", v[0])
	p.AddField(prefix+"Y", v[1])
	p.AddField(prefix+"Z", v[2])
}
