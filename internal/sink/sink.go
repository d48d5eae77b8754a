// Package sink defines the render sink the engine publishes to and picks
// the configured implementation.
package sink

import (
	"fmt"
	"log/slog"

	"github.com/airtrail/airtrail/internal/config"
	"github.com/airtrail/airtrail/internal/dispatcher"
	"github.com/airtrail/airtrail/internal/feature"
	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/internal/sink/memory"
	"github.com/airtrail/airtrail/internal/sink/websocket"
	"github.com/airtrail/airtrail/pkg/core"
	"github.com/airtrail/airtrail/pkg/streaming"
)

// ErrRenderBackend is returned for renderer failures. Rendering carries on
// degraded when it occurs.
var ErrRenderBackend = streaming.ErrRenderBackend

// Sink is the map renderer as seen by the engine. Every publish is a full
// replacement of the previous content.
type Sink interface {
	// Lifecycle
	Init() error
	Close() error

	// RegisterStyle is idempotent; registering the same style twice is a no-op.
	RegisterStyle(style feature.Style) error

	ReplacePoints(frame core.RenderFrame) error
	ReplaceTrails(trails map[core.EntityID]core.Polyline) error

	// PublishSelection updates the detail panel; nil clears it.
	PublishSelection(sel *core.Selection) error
}

// New creates the render sink selected by configuration. onEvent receives
// pointer events reported by the renderer.
func New(cfg config.SinkConfig, proj geo.Projection, onEvent func(dispatcher.Event), logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.New(cfg.Memory, proj, onEvent), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, proj, onEvent, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}
