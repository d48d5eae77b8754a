// pkg/core/frame.go
package core

// IconState is the icon label painted for a point feature.
type IconState string

const (
	IconNormal      IconState = "normal"
	IconHighlighted IconState = "highlighted"
)

// FramePoint is one entity at one animation instant.
type FramePoint struct {
	ID         EntityID
	Position   Position
	Heading    float64 // degrees, atan2 of the leg displacement
	Icon       IconState
	Attributes Attributes
}

// RenderFrame is the set of points to paint for one animation step.
// Step is 1-indexed within a leg of Steps steps; Seq is the snapshot
// sequence number the leg is heading to.
type RenderFrame struct {
	Seq    uint64
	Step   int
	Steps  int
	Points []FramePoint
}

// Empty reports whether the frame holds no points.
func (f RenderFrame) Empty() bool {
	return len(f.Points) == 0
}

// Lookup returns the point for id, if present.
func (f RenderFrame) Lookup(id EntityID) (FramePoint, bool) {
	for _, p := range f.Points {
		if p.ID == id {
			return p, true
		}
	}
	return FramePoint{}, false
}

// Index maps entity ids to their points.
func (f RenderFrame) Index() map[EntityID]FramePoint {
	idx := make(map[EntityID]FramePoint, len(f.Points))
	for _, p := range f.Points {
		idx[p.ID] = p
	}
	return idx
}

// Clone returns a copy whose Points slice can be modified independently.
// Attribute bags are shared; they are never mutated after the boundary.
func (f RenderFrame) Clone() RenderFrame {
	out := f
	out.Points = make([]FramePoint, len(f.Points))
	copy(out.Points, f.Points)
	return out
}
