package worker

import (
	"errors"
	"log/slog"

	"github.com/airtrail/airtrail/pkg/core"
)

// ErrStopped is returned by handlers once the manager has been stopped.
var ErrStopped = errors.New("worker stopped")

// ErrMissingEntityID is returned for hover and click events without an id.
var ErrMissingEntityID = errors.New("pointer event without entity id")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	// Pointer is the engine's inbound pointer channel.
	Pointer chan<- core.PointerEvent
	Logger  *slog.Logger
}

// Manager turns renderer events into engine pointer events
type Manager struct {
	deps Dependencies
	done chan struct{}
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		deps: deps,
		done: make(chan struct{}),
	}
}

// Stop unblocks handlers waiting on a full pointer channel. Safe to call once.
func (m *Manager) Stop() {
	close(m.done)
}
