package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skytether/libration/internal/host/sim"
	"github.com/skytether/libration/internal/tracker"
	"github.com/skytether/libration/pkg/hostproto"
	"github.com/skytether/libration/pkg/vec"
)

var _ tracker.Host = (*HostAdapter)(nil)

// fakeHost serves the host protocol from a sim.Host and records
// notifications.
type fakeHost struct {
	host *sim.Host

	mu            sync.Mutex
	notifications []hostproto.Request
	secrets       []string
	silent        map[string]bool
	conns         []*ws.Conn
}

func newFakeHost(t *testing.T) (*fakeHost, *httptest.Server) {
	t.Helper()
	h, err := sim.New(sim.Config{
		Start:           time.Date(2022, 9, 29, 0, 0, 0, 0, time.UTC),
		Pace:            5e5,
		CameraUnitScale: 1e6,
	}, nil)
	require.NoError(t, err)

	f := &fakeHost{host: h, silent: make(map[string]bool)}
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		f.mu.Lock()
		f.secrets = append(f.secrets, r.URL.Query().Get("secret"))
		f.conns = append(f.conns, c)
		f.mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req hostproto.Request
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			if req.ID == 0 {
				f.mu.Lock()
				f.notifications = append(f.notifications, req)
				f.mu.Unlock()
				continue
			}

			f.mu.Lock()
			silent := f.silent[req.Method]
			f.mu.Unlock()
			if silent {
				continue
			}

			data, _ := json.Marshal(f.handle(req))
			if err := c.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeHost) handle(req hostproto.Request) hostproto.Response {
	result := func(v any) hostproto.Response {
		resp, err := hostproto.NewResult(req.ID, v)
		if err != nil {
			return hostproto.NewError(req.ID, hostproto.CodeBadParams, "%v", err)
		}
		return resp
	}
	var name hostproto.NameParams
	var vp hostproto.VectorParams

	switch req.Method {
	case hostproto.MethodGetSimulationTime:
		return result(f.host.SimulationTime())
	case hostproto.MethodGetObjectPredictedPosition, hostproto.MethodGetObjectPosition:
		_ = json.Unmarshal(req.Params, &name)
		p, err := f.host.Lookup(name.Name)
		if err != nil {
			return hostproto.NewError(req.ID, hostproto.CodeNotFound, "%v", err)
		}
		if req.Method == hostproto.MethodGetObjectPosition {
			p = f.host.Position(name.Name)
		}
		return result(p)
	case hostproto.MethodGetCameraPosition:
		return result(f.host.CameraPosition())
	case hostproto.MethodGetCameraDirection:
		return result(f.host.CameraDirection())
	case hostproto.MethodGetCameraUp:
		return result(f.host.CameraUp())
	case hostproto.MethodSetCameraPosition:
		_ = json.Unmarshal(req.Params, &vp)
		f.host.SetCameraPosition(vp.Vector, vp.Immediate)
		return result(nil)
	case hostproto.MethodSetCameraDirection:
		_ = json.Unmarshal(req.Params, &vp)
		f.host.SetCameraDirection(vp.Vector, vp.Immediate)
		return result(nil)
	case hostproto.MethodSetCameraUp:
		_ = json.Unmarshal(req.Params, &vp)
		f.host.SetCameraUp(vp.Vector, vp.Immediate)
		return result(nil)
	case hostproto.MethodSetCameraFocus:
		_ = json.Unmarshal(req.Params, &name)
		if err := f.host.SetCameraFocus(name.Name); err != nil {
			return hostproto.NewError(req.ID, hostproto.CodeNotFound, "%v", err)
		}
		return result(nil)
	case hostproto.MethodStartSimulationTime:
		_ = f.host.StartSimulationTime()
		return result(nil)
	case hostproto.MethodStopSimulationTime:
		_ = f.host.StopSimulationTime()
		return result(nil)
	case hostproto.MethodSetSimulationTime:
		var tp hostproto.TimeParams
		_ = json.Unmarshal(req.Params, &tp)
		_ = f.host.SetSimulationTime(tp.Time)
		return result(nil)
	case hostproto.MethodSetSimulationPace:
		var pp hostproto.PaceParams
		_ = json.Unmarshal(req.Params, &pp)
		if err := f.host.SetSimulationPace(pp.Pace); err != nil {
			return hostproto.NewError(req.ID, hostproto.CodeBadParams, "%v", err)
		}
		return result(nil)
	default:
		return hostproto.NewError(req.ID, hostproto.CodeUnknownMethod, "unknown method %q", req.Method)
	}
}

func (f *fakeHost) silence(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent[method] = true
}

func (f *fakeHost) notified() []hostproto.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hostproto.Request(nil), f.notifications...)
}

func (f *fakeHost) dropConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c, err := Dial(Config{URL: wsURL(srv), Secret: "s3cret", Timeout: timeout}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(Config{URL: "ws://127.0.0.1:1/rpc"}, nil)
	assert.Error(t, err)
}

func TestDial_BadURL(t *testing.T) {
	_, err := Dial(Config{URL: "://nope"}, nil)
	assert.Error(t, err)
}

func TestClient_RoundTrip(t *testing.T) {
	f, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)
	ctx := context.Background()

	simTime, err := c.SimulationTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.host.SimulationTime(), simTime)

	moon, err := c.PredictedPosition(ctx, sim.Moon)
	require.NoError(t, err)
	assert.Equal(t, f.host.PredictedPosition(sim.Moon), moon)

	require.NoError(t, c.SetCameraPosition(ctx, vec.New(1, 2, 3), true))
	got, err := c.CameraPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, vec.New(1, 2, 3), got)

	require.NoError(t, c.SetCameraDirection(ctx, vec.New(0, 2, 0), true))
	dir, err := c.CameraDirection(ctx)
	require.NoError(t, err)
	assert.Equal(t, vec.New(0, 1, 0), dir)

	f.mu.Lock()
	assert.Equal(t, []string{"s3cret"}, f.secrets)
	f.mu.Unlock()
}

func TestClient_SimulationControl(t *testing.T) {
	f, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)
	ctx := context.Background()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.SetSimulationTime(ctx, start))
	assert.Equal(t, start, f.host.Time())

	require.NoError(t, c.StartSimulationTime(ctx))
	assert.True(t, f.host.Running())
	require.NoError(t, c.StopSimulationTime(ctx))
	assert.False(t, f.host.Running())

	err := c.SetSimulationPace(ctx, -1)
	var hostErr *hostproto.Error
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, hostproto.CodeBadParams, hostErr.Code)
}

func TestClient_HostError(t *testing.T) {
	_, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)

	_, err := c.PredictedPosition(context.Background(), "Pluto")
	var hostErr *hostproto.Error
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, hostproto.CodeNotFound, hostErr.Code)

	err = c.Call(context.Background(), "warpDrive", nil, nil)
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, hostproto.CodeUnknownMethod, hostErr.Code)
}

func TestClient_Timeout(t *testing.T) {
	f, srv := newFakeHost(t)
	f.silence(hostproto.MethodGetSimulationTime)
	c := dial(t, srv, 50*time.Millisecond)

	start := time.Now()
	_, err := c.SimulationTime(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_ContextCanceled(t *testing.T) {
	_, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SimulationTime(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Closed(t *testing.T) {
	_, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.SimulationTime(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_ParkNotifications(t *testing.T) {
	f, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)

	require.NoError(t, c.ParkRunnable("camera-updater"))
	require.NoError(t, c.UnparkRunnable("camera-updater"))

	assert.Eventually(t, func() bool { return len(f.notified()) == 2 }, time.Second, 5*time.Millisecond)
	got := f.notified()
	assert.Equal(t, hostproto.MethodParkRunnable, got[0].Method)
	assert.JSONEq(t, `{"name":"camera-updater"}`, string(got[0].Params))
	assert.Equal(t, hostproto.MethodUnparkRunnable, got[1].Method)
}

func TestClient_ReconnectReplaysParked(t *testing.T) {
	f, srv := newFakeHost(t)
	c := dial(t, srv, time.Second)
	c.conn.backoff = 10 * time.Millisecond

	require.NoError(t, c.ParkRunnable("camera-updater"))
	assert.Eventually(t, func() bool { return len(f.notified()) == 1 }, time.Second, 5*time.Millisecond)

	f.dropConnections()

	// the park notification arrives again on the new connection
	assert.Eventually(t, func() bool { return len(f.notified()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, hostproto.MethodParkRunnable, f.notified()[1].Method)

	_, err := c.SimulationTime(context.Background())
	assert.NoError(t, err)
}

func TestHostAdapter_FallsBackToLastGood(t *testing.T) {
	f, srv := newFakeHost(t)
	c := dial(t, srv, 50*time.Millisecond)
	a := NewHostAdapter(c, nil)

	moon := a.PredictedPosition(sim.Moon)
	assert.Equal(t, f.host.PredictedPosition(sim.Moon), moon)
	simTime := a.SimulationTime()

	f.silence(hostproto.MethodGetObjectPredictedPosition)
	f.silence(hostproto.MethodGetSimulationTime)

	assert.Equal(t, moon, a.PredictedPosition(sim.Moon))
	assert.Equal(t, simTime, a.SimulationTime())
	assert.Equal(t, uint64(2), a.Failures())
}

func TestHostAdapter_UnknownBodyIsZero(t *testing.T) {
	_, srv := newFakeHost(t)
	a := NewHostAdapter(dial(t, srv, time.Second), nil)

	assert.Equal(t, vec.Vec3{}, a.Position("Pluto"))
	assert.Equal(t, uint64(1), a.Failures())
}

func TestHostAdapter_ZeroUpIsNotSent(t *testing.T) {
	f, srv := newFakeHost(t)
	a := NewHostAdapter(dial(t, srv, 50*time.Millisecond), nil)
	f.silence(hostproto.MethodSetCameraUp)

	a.SetCameraUp(vec.Vec3{}, true)
	assert.Equal(t, uint64(0), a.Failures())

	a.SetCameraUp(vec.New(0, 0, 1), true)
	assert.Equal(t, uint64(1), a.Failures())
}

func TestHostAdapter_DrivesTracker(t *testing.T) {
	f, srv := newFakeHost(t)
	a := NewHostAdapter(dial(t, srv, time.Second), nil)

	require.NoError(t, a.StopSimulationTime())
	require.NoError(t, a.SetSimulationPace(5e5))
	earth := a.PredictedPosition(sim.Earth)
	moon := a.PredictedPosition(sim.Moon)
	a.SetCameraPosition(earth.Add(moon.Sub(earth).Mul(7./400.)).Mul(1e6), true)
	require.NoError(t, a.SetCameraFocus(sim.Moon))
	require.NoError(t, a.StartSimulationTime())

	cfg := tracker.DefaultConfig()
	cfg.Interval = 0
	tr, err := tracker.New(a, cfg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		f.host.Advance(16 * time.Millisecond)
		tr.OnTick()
	}
	assert.Equal(t, tracker.Tracking, tr.State())
	assert.Zero(t, a.Failures())

	// the sim side received the pushed camera
	cam := f.host.CameraPosition().Mul(1e-6)
	e := f.host.PredictedPosition(sim.Earth)
	m := f.host.PredictedPosition(sim.Moon)
	r1, _ := vec.Normalize(m.Sub(e))
	rel, _ := vec.Normalize(cam.Sub(e))
	assert.InDelta(t, 1.0, vec.Dot(r1, rel), 1e-9)
}
