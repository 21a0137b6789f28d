package showcase

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/internal/host/sim"
	"github.com/skytether/libration/internal/recorder"
	"github.com/skytether/libration/internal/session"
	"github.com/skytether/libration/internal/storage/memory"
	"github.com/skytether/libration/internal/tracker"
	"github.com/skytether/libration/pkg/vec"
)

var start = time.Date(2022, 9, 29, 0, 0, 0, 0, time.UTC)

// notifyingHost records park notifications.
type notifyingHost struct {
	*sim.Host
	events []string
}

func (n *notifyingHost) ParkRunnable(name string) error {
	n.events = append(n.events, "park:"+name)
	return nil
}

func (n *notifyingHost) UnparkRunnable(name string) error {
	n.events = append(n.events, "unpark:"+name)
	return nil
}

func newSim(t *testing.T) *sim.Host {
	t.Helper()
	h, err := sim.New(sim.Config{Start: start, Pace: 1, CameraUnitScale: 1e6}, nil)
	require.NoError(t, err)
	return h
}

func testConfig() Config {
	tc := tracker.DefaultConfig()
	tc.Interval = 0
	return Config{
		Name:           "test",
		HostType:       config.HostSim,
		Tracker:        tc,
		Start:          start,
		Pace:           5e5,
		FPS:            100,
		Duration:       300 * time.Millisecond,
		CameraFraction: 7. / 400.,
	}
}

func TestPlaceCamera(t *testing.T) {
	h := newSim(t)
	require.NoError(t, PlaceCamera(h, sim.Earth, sim.Moon, 0.5, 1e6))

	e := h.PredictedPosition(sim.Earth)
	m := h.PredictedPosition(sim.Moon)
	mid := e.Add(m).Mul(0.5)
	assert.InDelta(t, 0, math.Sqrt(vec.LenSq(h.CameraPosition().Mul(1e-6).Sub(mid))), 1e-6)

	dir, _ := vec.Normalize(m.Sub(e))
	assert.InDelta(t, 1.0, vec.Dot(dir, h.CameraDirection()), 1e-9)
}

func TestPlaceCamera_UnknownFocus(t *testing.T) {
	h := newSim(t)
	assert.ErrorIs(t, PlaceCamera(h, sim.Earth, "Pluto", 0.5, 1e6), sim.ErrUnknownBody)
}

func TestRun(t *testing.T) {
	h := &notifyingHost{Host: newSim(t)}
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	rec, err := recorder.New(recorder.Dependencies{Backend: backend}, recorder.Config{})
	require.NoError(t, err)
	defer rec.Close()
	sessions := session.NewContext()

	sess, err := Run(context.Background(), testConfig(), Dependencies{
		Host:     h,
		Recorder: rec,
		Session:  sessions,
	})
	require.NoError(t, err)

	assert.Equal(t, "Earth", sess.BodyA)
	assert.Equal(t, "Moon", sess.BodyB)
	assert.Equal(t, config.HostSim, sess.Host)
	assert.False(t, sess.EndTime.IsZero())
	assert.InDelta(t, start.Sub(sim.J2000).Seconds(), sess.SimStart, 1e-6)

	assert.False(t, h.Running())
	assert.Equal(t, []string{"park:" + RunnableName, "unpark:" + RunnableName}, h.events)
	assert.Nil(t, sessions.Get())

	summary := backend.Summary()
	require.Greater(t, summary.Samples, 2)
	assert.Equal(t, 1, summary.Captures)
	assert.Greater(t, summary.Pushed, 1)
	assert.NotEmpty(t, backend.GetExportedFilePath())

	// the tied path stays put while the world path moves with the Moon
	assert.Less(t, summary.TiedLength, 1e-6)
	assert.Greater(t, summary.WorldLength, 1.0)
}

func TestRun_CanceledContextStillCleansUp(t *testing.T) {
	h := &notifyingHost{Host: newSim(t)}
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	rec, err := recorder.New(recorder.Dependencies{Backend: backend}, recorder.Config{})
	require.NoError(t, err)
	defer rec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.Duration = time.Hour
	_, err = Run(ctx, cfg, Dependencies{Host: h, Recorder: rec})
	require.NoError(t, err)
	assert.False(t, h.Running())
	assert.Len(t, h.events, 2)
}

func TestRun_BadFrameRate(t *testing.T) {
	h := newSim(t)
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	rec, err := recorder.New(recorder.Dependencies{Backend: backend}, recorder.Config{})
	require.NoError(t, err)
	defer rec.Close()

	cfg := testConfig()
	cfg.FPS = 0
	_, err = Run(context.Background(), cfg, Dependencies{Host: h, Recorder: rec})
	assert.Error(t, err)
	assert.False(t, h.Running())
}

func TestRun_MissingDependencies(t *testing.T) {
	_, err := Run(context.Background(), testConfig(), Dependencies{})
	assert.Error(t, err)
}
