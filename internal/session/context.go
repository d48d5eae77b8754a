// Package session holds the identity of one running airtrail process.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context holds the current session and the live tracked-entity count.
type Context struct {
	mu        sync.RWMutex
	id        uuid.UUID
	started   time.Time
	sourceURL string
	tracked   func() int
}

// NewContext starts a session for the given snapshot source.
func NewContext(sourceURL string) *Context {
	return &Context{
		id:        uuid.New(),
		started:   time.Now().UTC(),
		sourceURL: sourceURL,
	}
}

// ID returns the session id.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Started returns when the session began.
func (c *Context) Started() time.Time {
	return c.started
}

// SourceURL returns the snapshot source.
func (c *Context) SourceURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sourceURL
}

// SetTracked installs the function reporting how many entities the engine
// currently tracks.
func (c *Context) SetTracked(f func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked = f
}

// Tracked returns the current tracked-entity count, 0 before SetTracked.
func (c *Context) Tracked() int {
	c.mu.RLock()
	f := c.tracked
	c.mu.RUnlock()
	if f == nil {
		return 0
	}
	return f()
}

// Uptime returns the time since the session started.
func (c *Context) Uptime() time.Duration {
	return time.Since(c.started)
}

// Attrs returns the attributes added to every log record.
func (c *Context) Attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("session", c.id.String()),
		slog.Int("tracked", c.Tracked()),
	}
}
