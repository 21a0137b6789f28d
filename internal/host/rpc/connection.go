package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/skytether/libration/pkg/hostproto"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// ErrClosed is returned for calls on a closed connection.
var ErrClosed = errors.New("connection closed")

// connection manages a WebSocket connection with a single write goroutine.
// Responses are routed to waiting calls by request id.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	sendCh  chan []byte
	pending map[uint64]chan hostproto.Response
	done    chan struct{} // closed on shutdown
	stop    chan struct{} // closed when the current conn is torn down
	closed  bool

	wsURL  string
	secret string

	// Parked runnables, replayed after a reconnect.
	parked map[string][]byte

	backoff time.Duration
	logger  *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		pending: make(map[uint64]chan hostproto.Response),
		done:    make(chan struct{}),
		parked:  make(map[string][]byte),
		backoff: time.Second,
		logger:  logger,
	}
}

// dial connects to the host and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to conn. It returns on error,
// on shutdown, or once conn has been torn down.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop reads responses and hands each to the call waiting on its id.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var resp hostproto.Response
		if err := json.Unmarshal(message, &resp); err != nil || resp.ID == 0 {
			c.logger.Debug("Non-response message received", "raw", string(message))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("Response for unknown request", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

// reconnect re-establishes the connection with exponential backoff. It is
// a no-op unless broken is still the current connection, so the read and
// write loops failing together reconnect once. Parked runnables are
// replayed before the loops restart.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	close(c.stop)
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to host", "attempt", attempt, "backoff", backoff)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.stop = make(chan struct{})
		stop := c.stop
		replay := make([][]byte, 0, len(c.parked))
		for _, msg := range c.parked {
			replay = append(replay, msg)
		}
		c.mu.Unlock()

		failed := false
		for _, msg := range replay {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				failed = true
				break
			}
			if err := conn.WriteMessage(ws.TextMessage, msg); err != nil {
				failed = true
				break
			}
		}
		if failed {
			c.logger.Warn("Failed to replay parked runnables after reconnect")
			_ = conn.Close()
			continue
		}

		c.logger.Info("Host reconnected", "attempt", attempt)
		go c.writeLoop(conn, stop)
		go c.readLoop(conn)
		return
	}

	c.logger.Error("Host reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return fmt.Errorf("send channel full")
	}
}

// call sends req and waits for the response with the same id.
func (c *connection) call(req hostproto.Request, timeout time.Duration) (hostproto.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return hostproto.Response{}, fmt.Errorf("marshal %s request: %w", req.Method, err)
	}

	ch := make(chan hostproto.Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.send(data); err != nil {
		return hostproto.Response{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return hostproto.Response{}, fmt.Errorf("timeout waiting for %s response", req.Method)
	case <-c.done:
		return hostproto.Response{}, fmt.Errorf("%w while waiting for %s response", ErrClosed, req.Method)
	}
}

// notify sends req without waiting. Park and unpark notifications update
// the replay set.
func (c *connection) notify(req hostproto.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", req.Method, err)
	}

	var p hostproto.NameParams
	switch req.Method {
	case hostproto.MethodParkRunnable:
		if json.Unmarshal(req.Params, &p) == nil {
			c.mu.Lock()
			c.parked[p.Name] = data
			c.mu.Unlock()
		}
	case hostproto.MethodUnparkRunnable:
		if json.Unmarshal(req.Params, &p) == nil {
			c.mu.Lock()
			delete(c.parked, p.Name)
			c.mu.Unlock()
		}
	}
	return c.send(data)
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
