// pkg/core/interaction.go
package core

// PointerKind identifies a pointer event reported by the render sink.
type PointerKind string

const (
	PointerEnter PointerKind = "enter"
	PointerLeave PointerKind = "leave"
	PointerClick PointerKind = "click"
	// PointerDismiss is sent when the detail panel is closed.
	PointerDismiss PointerKind = "dismiss"
)

// PointerEvent is an interaction reported for the topmost hit feature.
// ID is empty for leave and dismiss.
type PointerEvent struct {
	Kind PointerKind
	ID   EntityID
}

// Selection is the entity currently shown in the detail panel.
type Selection struct {
	ID         EntityID   `json:"id"`
	Attributes Attributes `json:"attributes"`
}
