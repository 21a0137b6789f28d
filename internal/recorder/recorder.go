// Package recorder turns tracker tick reports into samples and writes them
// to a storage backend from a background goroutine.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/skytether/libration/internal/frame"
	"github.com/skytether/libration/internal/queue"
	"github.com/skytether/libration/internal/storage"
	"github.com/skytether/libration/internal/tracker"
	"github.com/skytether/libration/pkg/core"
)

const (
	instrumentationName = "github.com/skytether/libration/internal/recorder"

	// DefaultCapacity bounds the pending queue. At the default 100ms tick
	// interval this is several minutes of samples.
	DefaultCapacity = 4096
	// DefaultBatchSize caps one RecordSamples call.
	DefaultBatchSize = 500
)

// Dependencies holds all dependencies for the recorder
type Dependencies struct {
	Backend storage.Backend
	Logger  *slog.Logger
}

// Config controls buffering.
type Config struct {
	FlushInterval time.Duration
	Capacity      int
	BatchSize     int
}

// Recorder implements tracker.Observer.
type Recorder struct {
	deps    Dependencies
	cfg     Config
	pending *queue.Queue[core.TrackSample]
	dropped metric.Int64Counter

	// writeMu serializes backend calls. ObserveTick never takes it.
	writeMu sync.Mutex

	stateMu   sync.Mutex
	sessionID uuid.UUID
	active    bool
	lastWrite time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a recorder and starts its flush loop when FlushInterval is
// positive. With no interval samples are written only by Flush.
func New(deps Dependencies, cfg Config) (*Recorder, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("recorder needs a storage backend")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	dropped, err := otel.Meter(instrumentationName).Int64Counter(
		"recorder.samples.dropped",
		metric.WithDescription("Samples evicted from a full recorder queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	r := &Recorder{
		deps:     deps,
		cfg:      cfg,
		pending:  queue.NewBounded[core.TrackSample](cfg.Capacity),
		dropped:  dropped,
		stopChan: make(chan struct{}),
	}

	if cfg.FlushInterval > 0 {
		r.wg.Add(1)
		go r.flushLoop()
	}
	return r, nil
}

// Begin starts a session on the backend. Samples observed before Begin
// are discarded.
func (r *Recorder) Begin(s *core.Session) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := r.deps.Backend.StartSession(s); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	r.stateMu.Lock()
	r.sessionID = s.ID
	r.active = true
	r.stateMu.Unlock()
	r.pending.Drain(0)
	r.deps.Logger.Info("Recording session", "session", s.ID, "bodyA", s.BodyA, "bodyB", s.BodyB)
	return nil
}

// End writes everything pending and ends the backend session. The
// backend session is ended even when the final flush fails.
func (r *Recorder) End() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	id, active := r.state()
	if !active {
		return core.ErrNoSession
	}
	flushErr := r.flushLocked()

	r.stateMu.Lock()
	r.active = false
	r.stateMu.Unlock()

	var endErr error
	if err := r.deps.Backend.EndSession(); err != nil {
		endErr = fmt.Errorf("ending session: %w", err)
	}
	r.deps.Logger.Info("Session ended", "session", id, "dropped", r.pending.Dropped())
	return errors.Join(flushErr, endErr)
}

func (r *Recorder) state() (uuid.UUID, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.sessionID, r.active
}

// SessionID returns the active session, uuid.Nil when none is.
func (r *Recorder) SessionID() uuid.UUID {
	id, active := r.state()
	if !active {
		return uuid.Nil
	}
	return id
}

// ObserveTick queues a sample. It never waits for a backend write.
func (r *Recorder) ObserveTick(rep tracker.TickReport) {
	id, active := r.state()
	if !active {
		return
	}

	if n := r.pending.Push(Sample(id, rep)); n > 0 {
		r.dropped.Add(context.Background(), int64(n))
	}
}

// Pending returns the number of queued samples.
func (r *Recorder) Pending() int {
	return r.pending.Len()
}

// Dropped returns how many samples were evicted since New.
func (r *Recorder) Dropped() uint64 {
	return r.pending.Dropped()
}

// GetLastWriteDuration returns the duration of the last backend write.
func (r *Recorder) GetLastWriteDuration() time.Duration {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.lastWrite
}

// Flush writes all queued samples in batches.
func (r *Recorder) Flush() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if _, active := r.state(); !active {
		return nil
	}

	start := time.Now()
	for {
		batch := r.pending.Drain(r.cfg.BatchSize)
		if len(batch) == 0 {
			break
		}
		if err := r.deps.Backend.RecordSamples(batch); err != nil {
			return fmt.Errorf("recording %d samples: %w", len(batch), err)
		}
	}
	r.stateMu.Lock()
	r.lastWrite = time.Since(start)
	r.stateMu.Unlock()
	return nil
}

// Close stops the flush loop and flushes once more. It does not end the
// session or close the backend.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
	return r.Flush()
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.deps.Logger.Error("Failed to flush samples", "error", err)
			}
		case <-r.stopChan:
			return
		}
	}
}

// Sample converts a tick report.
func Sample(sessionID uuid.UUID, rep tracker.TickReport) core.TrackSample {
	s := core.TrackSample{
		SessionID: sessionID,
		Seq:       rep.Seq,
		Time:      rep.Wall,
		SimTime:   rep.SimTime,
		SimDelta:  rep.SimDelta,
		State:     rep.State.String(),
		Outcome:   rep.Outcome.String(),
		Tied: core.TiedCoords{
			Position:  rep.Tied.Position,
			Direction: rep.Tied.Direction,
			Up:        rep.Tied.Up,
		},
		Origin: core.Vec3(rep.Origin),
	}

	if rep.Outcome != tracker.OutcomePaused {
		s.FrameStatus = rep.Frames.Status.String()
	}
	if rep.Frames.Status == frame.Valid {
		f := rep.Frames.Current
		s.Axes = &core.Axes{R1: core.Vec3(f.R1), R2: core.Vec3(f.R2), R3: core.Vec3(f.R3)}
	}
	if rep.Outcome.Pushed() {
		s.Camera = &core.CameraPose{
			Position:  core.Vec3(rep.Pose.Position),
			Direction: core.Vec3(rep.Pose.Direction),
			Up:        core.Vec3(rep.Pose.Up),
		}
	}
	return s
}
