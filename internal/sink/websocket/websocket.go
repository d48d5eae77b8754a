package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/airtrail/airtrail/internal/dispatcher"
	"github.com/airtrail/airtrail/internal/feature"
	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/internal/selection"
	"github.com/airtrail/airtrail/pkg/core"
	"github.com/airtrail/airtrail/pkg/streaming"
)

// Config holds WebSocket sink configuration.
type Config struct {
	URL    string
	Secret string
}

// Sink streams GeoJSON collections to the map frontend and turns the
// pointer events it reports into dispatcher events.
type Sink struct {
	conn    *connection
	cfg     Config
	proj    geo.Projection
	onEvent func(dispatcher.Event)
	logger  *slog.Logger

	mu    sync.Mutex
	style *feature.Style
	enc   *feature.Encoder
}

// New creates a new WebSocket render sink. A nil logger uses slog.Default.
func New(cfg Config, proj geo.Projection, onEvent func(dispatcher.Event), logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		cfg:     cfg,
		proj:    proj,
		onEvent: onEvent,
		logger:  logger,
		enc:     feature.NewEncoder(proj, feature.DefaultStyle()),
	}
	s.conn = newConnection(logger, s.handleMessage)
	return s
}

// Init connects to the renderer.
func (s *Sink) Init() error {
	if err := s.conn.dial(s.cfg.URL, s.cfg.Secret); err != nil {
		return fmt.Errorf("%w: %w", streaming.ErrRenderBackend, err)
	}
	return nil
}

// Close disconnects from the renderer.
func (s *Sink) Close() error {
	return s.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop
// (fire-and-forget).
func (s *Sink) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", streaming.ErrRenderBackend, err)
	}
	return s.conn.send(data)
}

// RegisterStyle sends the icon and trail style and waits for the renderer
// to acknowledge it. The message is cached for replay after reconnects.
func (s *Sink) RegisterStyle(style feature.Style) error {
	s.mu.Lock()
	if s.style != nil && *s.style == style {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	data, err := marshalEnvelope(streaming.TypeRegisterStyle, style)
	if err != nil {
		return fmt.Errorf("%w: %w", streaming.ErrRenderBackend, err)
	}

	s.conn.mu.Lock()
	s.conn.cachedStyleMsg = data
	s.conn.mu.Unlock()

	if err := s.conn.sendAndWait(data, streaming.TypeRegisterStyle, ackTimeout); err != nil {
		return err
	}

	s.mu.Lock()
	st := style
	s.style = &st
	s.enc = feature.NewEncoder(s.proj, style)
	s.mu.Unlock()
	return nil
}

func (s *Sink) encoder() *feature.Encoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc
}

// ReplacePoints sends the frame as a point FeatureCollection.
func (s *Sink) ReplacePoints(frame core.RenderFrame) error {
	return s.sendEnvelope(streaming.TypePoints, s.encoder().Points(frame))
}

// ReplaceTrails sends every trail as a LineString FeatureCollection.
func (s *Sink) ReplaceTrails(trails map[core.EntityID]core.Polyline) error {
	return s.sendEnvelope(streaming.TypeTrails, s.encoder().Trails(trails))
}

// PublishSelection sends the detail panel view of the selection.
func (s *Sink) PublishSelection(sel *core.Selection) error {
	return s.sendEnvelope(streaming.TypeSelection, selectionPayload(sel))
}

func selectionPayload(sel *core.Selection) streaming.SelectionPayload {
	if sel == nil {
		return streaming.SelectionPayload{}
	}
	d := selection.DetailFrom(*sel)
	payload := streaming.SelectionPayload{
		Selected: true,
		ID:       string(d.ID),
		Name:     d.Name,
		Model:    d.Model,
	}
	for _, f := range d.Fields {
		payload.Fields = append(payload.Fields, streaming.SelectionField{Key: f.Key, Value: f.Value})
	}
	return payload
}

// handleMessage runs on the read loop for every non-ack message.
func (s *Sink) handleMessage(msg inbound) {
	switch msg.Type {
	case streaming.TypePointerEnter, streaming.TypeClick:
		var p streaming.PointerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.logger.Debug("Bad pointer payload", "type", msg.Type, "error", err)
			return
		}
		id, ok := p.EntityID()
		if !ok {
			s.logger.Debug("Pointer event without entity id", "type", msg.Type)
			return
		}
		s.emit(msg.Type, []string{string(id)})

	case streaming.TypePointerLeave, streaming.TypeDismiss:
		s.emit(msg.Type, nil)

	case streaming.TypeRenderError:
		var p streaming.RenderErrorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.logger.Debug("Bad render_error payload", "error", err)
			p.Message = "unreadable error report"
		}
		s.logger.Warn("Renderer reported an error, continuing degraded",
			"error", fmt.Errorf("%w: %s", streaming.ErrRenderBackend, p.Message),
			"asset", p.Asset)

	default:
		s.logger.Debug("Unknown message from renderer", "type", msg.Type)
	}
}

func (s *Sink) emit(command string, args []string) {
	if s.onEvent == nil {
		return
	}
	s.onEvent(dispatcher.Event{Command: command, Args: args})
}
