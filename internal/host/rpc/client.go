// Package rpc talks to a remote visualization host over a websocket. Client
// exposes the host's methods as error-returning calls; HostAdapter turns a
// Client into a tracker.Host.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/skytether/libration/pkg/hostproto"
	"github.com/skytether/libration/pkg/vec"
)

// DefaultTimeout bounds a call when Config.Timeout is unset.
const DefaultTimeout = 2 * time.Second

// Config holds the host connection settings.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Client is a request/response client for the host.
type Client struct {
	conn   *connection
	cfg    Config
	nextID atomic.Uint64
	logger *slog.Logger
}

// Dial connects to the host.
func Dial(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		conn:   newConnection(logger),
		cfg:    cfg,
		logger: logger,
	}
	if err := c.conn.dial(cfg.URL, cfg.Secret); err != nil {
		return nil, err
	}
	logger.Info("Connected to host", "url", cfg.URL)
	return c, nil
}

// Close disconnects from the host.
func (c *Client) Close() error {
	return c.conn.close()
}

// Call invokes method and decodes its result into out, which may be nil.
// The call fails at the earlier of the context deadline and the configured
// timeout.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	req, err := hostproto.NewRequest(c.nextID.Add(1), method, params)
	if err != nil {
		return err
	}

	timeout := c.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := c.conn.call(req, timeout)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Notify sends method without waiting for a response.
func (c *Client) Notify(method string, params any) error {
	req, err := hostproto.NewRequest(0, method, params)
	if err != nil {
		return err
	}
	return c.conn.notify(req)
}

func (c *Client) vector(ctx context.Context, method string, params any) (vec.Vec3, error) {
	var v [3]float64
	if err := c.Call(ctx, method, params, &v); err != nil {
		return vec.Vec3{}, err
	}
	out := vec.Vec3(v)
	if !vec.Finite(out) {
		return vec.Vec3{}, fmt.Errorf("%s returned a non-finite vector", method)
	}
	return out, nil
}

// SimulationTime returns the host's simulation time in seconds.
func (c *Client) SimulationTime(ctx context.Context) (float64, error) {
	var t float64
	err := c.Call(ctx, hostproto.MethodGetSimulationTime, nil, &t)
	return t, err
}

// PredictedPosition returns a body's position at the current simulation time.
func (c *Client) PredictedPosition(ctx context.Context, name string) (vec.Vec3, error) {
	return c.vector(ctx, hostproto.MethodGetObjectPredictedPosition, hostproto.NameParams{Name: name})
}

// Position returns a body's last settled position.
func (c *Client) Position(ctx context.Context, name string) (vec.Vec3, error) {
	return c.vector(ctx, hostproto.MethodGetObjectPosition, hostproto.NameParams{Name: name})
}

func (c *Client) CameraPosition(ctx context.Context) (vec.Vec3, error) {
	return c.vector(ctx, hostproto.MethodGetCameraPosition, nil)
}

func (c *Client) CameraDirection(ctx context.Context) (vec.Vec3, error) {
	return c.vector(ctx, hostproto.MethodGetCameraDirection, nil)
}

func (c *Client) CameraUp(ctx context.Context) (vec.Vec3, error) {
	return c.vector(ctx, hostproto.MethodGetCameraUp, nil)
}

func (c *Client) SetCameraPosition(ctx context.Context, v vec.Vec3, immediate bool) error {
	return c.Call(ctx, hostproto.MethodSetCameraPosition, hostproto.VectorParams{Vector: v, Immediate: immediate}, nil)
}

func (c *Client) SetCameraDirection(ctx context.Context, v vec.Vec3, immediate bool) error {
	return c.Call(ctx, hostproto.MethodSetCameraDirection, hostproto.VectorParams{Vector: v, Immediate: immediate}, nil)
}

func (c *Client) SetCameraUp(ctx context.Context, v vec.Vec3, immediate bool) error {
	return c.Call(ctx, hostproto.MethodSetCameraUp, hostproto.VectorParams{Vector: v, Immediate: immediate}, nil)
}

// SetCameraFocus points the camera at a body.
func (c *Client) SetCameraFocus(ctx context.Context, name string) error {
	return c.Call(ctx, hostproto.MethodSetCameraFocus, hostproto.NameParams{Name: name}, nil)
}

func (c *Client) StartSimulationTime(ctx context.Context) error {
	return c.Call(ctx, hostproto.MethodStartSimulationTime, nil, nil)
}

func (c *Client) StopSimulationTime(ctx context.Context) error {
	return c.Call(ctx, hostproto.MethodStopSimulationTime, nil, nil)
}

func (c *Client) SetSimulationTime(ctx context.Context, t time.Time) error {
	return c.Call(ctx, hostproto.MethodSetSimulationTime, hostproto.TimeParams{Time: t}, nil)
}

func (c *Client) SetSimulationPace(ctx context.Context, pace float64) error {
	return c.Call(ctx, hostproto.MethodSetSimulationPace, hostproto.PaceParams{Pace: pace}, nil)
}

// ParkRunnable tells the host a runnable is attached. It is replayed after
// a reconnect until unparked.
func (c *Client) ParkRunnable(name string) error {
	return c.Notify(hostproto.MethodParkRunnable, hostproto.NameParams{Name: name})
}

func (c *Client) UnparkRunnable(name string) error {
	return c.Notify(hostproto.MethodUnparkRunnable, hostproto.NameParams{Name: name})
}
