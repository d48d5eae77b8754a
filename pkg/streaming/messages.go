package streaming

import (
	"encoding/json"
	"errors"

	"github.com/airtrail/airtrail/pkg/core"
)

// ErrRenderBackend marks failures of the renderer: style registration,
// writes, or assets the renderer reported it could not load.
var ErrRenderBackend = errors.New("render backend error")

// Outbound message types sent to the renderer.
const (
	TypeRegisterStyle = "register_style"
	TypePoints        = "points"
	TypeTrails        = "trails"
	TypeSelection     = "selection"
)

// Inbound message types reported by the renderer.
const (
	TypeAck          = "ack"
	TypePointerEnter = "pointer_enter"
	TypePointerLeave = "pointer_leave"
	TypeClick        = "click"
	TypeDismiss      = "dismiss"
	TypeRenderError  = "render_error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the renderer's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// PointerPayload carries the id of the topmost hit feature of a pointer
// event. It is empty for pointer_leave and dismiss.
type PointerPayload struct {
	ID json.RawMessage `json:"id,omitempty"`
}

// SelectionField is one extra attribute line of the detail panel.
type SelectionField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SelectionPayload drives the detail panel. Selected is false once the
// selection is dismissed.
type SelectionPayload struct {
	Selected bool             `json:"selected"`
	ID       string           `json:"id,omitempty"`
	Name     string           `json:"name,omitempty"`
	Model    string           `json:"model,omitempty"`
	Fields   []SelectionField `json:"fields,omitempty"`
}

// RenderErrorPayload describes a renderer-side failure such as an icon
// image that could not be loaded.
type RenderErrorPayload struct {
	Asset   string `json:"asset,omitempty"`
	Message string `json:"message"`
}

// EntityID decodes the hit feature's id, accepting strings and numbers.
func (p PointerPayload) EntityID() (core.EntityID, bool) {
	if len(p.ID) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(p.ID, &v); err != nil {
		return "", false
	}
	return core.EntityIDFrom(v)
}
