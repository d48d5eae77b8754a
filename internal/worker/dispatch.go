package worker

import (
	"fmt"

	"github.com/airtrail/airtrail/internal/dispatcher"
	"github.com/airtrail/airtrail/pkg/core"
	"github.com/airtrail/airtrail/pkg/streaming"
)

// RegisterHandlers registers the pointer event handlers with the dispatcher.
//
// Handlers run synchronously on the caller's goroutine (the sink's read
// loop) and send straight onto the engine's buffered pointer channel, so
// pointer events of every kind reach the engine in the order the renderer
// reported them.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(streaming.TypePointerEnter, m.handlePointerEnter, dispatcher.Logged())
	d.Register(streaming.TypePointerLeave, m.handlePointerLeave, dispatcher.Logged())
	d.Register(streaming.TypeClick, m.handleClick, dispatcher.Logged())
	d.Register(streaming.TypeDismiss, m.handleDismiss, dispatcher.Logged())
}

func (m *Manager) handlePointerEnter(e dispatcher.Event) (any, error) {
	id, err := entityID(e)
	if err != nil {
		return nil, err
	}
	return nil, m.forward(core.PointerEvent{Kind: core.PointerEnter, ID: id})
}

func (m *Manager) handlePointerLeave(e dispatcher.Event) (any, error) {
	return nil, m.forward(core.PointerEvent{Kind: core.PointerLeave})
}

func (m *Manager) handleClick(e dispatcher.Event) (any, error) {
	id, err := entityID(e)
	if err != nil {
		return nil, err
	}
	return nil, m.forward(core.PointerEvent{Kind: core.PointerClick, ID: id})
}

func (m *Manager) handleDismiss(e dispatcher.Event) (any, error) {
	return nil, m.forward(core.PointerEvent{Kind: core.PointerDismiss})
}

func (m *Manager) forward(ev core.PointerEvent) error {
	select {
	case m.deps.Pointer <- ev:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

func entityID(e dispatcher.Event) (core.EntityID, error) {
	if len(e.Args) == 0 || e.Args[0] == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEntityID, e.Command)
	}
	return core.EntityID(e.Args[0]), nil
}
