// Package session tracks the recording session in progress so that log
// records can carry it.
package session

import (
	"log/slog"
	"sync"

	"github.com/skytether/libration/pkg/core"
)

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	session *core.Session
}

// NewContext creates a Context with no session.
func NewContext() *Context {
	return &Context{}
}

// Get returns the current session, nil when none is active.
func (c *Context) Get() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Set makes s the current session.
func (c *Context) Set(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Clear drops the current session.
func (c *Context) Clear() {
	c.Set(nil)
}

// LogAttrs returns the session attributes for logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	s := c.Get()
	if s == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("session", s.ID.String()),
		slog.String("bodies", s.BodyA+"/"+s.BodyB),
	}
}
