// Package interaction tracks hover highlight state and overlays it onto
// animation frames without touching their motion.
package interaction

import (
	"slices"

	"github.com/airtrail/airtrail/pkg/core"
)

// Layer owns the HighlightState map. It is mutated only through pointer
// events and is not safe for concurrent use; the engine loop owns it.
type Layer struct {
	highlighted map[core.EntityID]struct{}
	latest      map[core.EntityID]core.FramePoint
}

// New creates a layer with nothing highlighted.
func New() *Layer {
	return &Layer{
		highlighted: make(map[core.EntityID]struct{}),
		latest:      make(map[core.EntityID]core.FramePoint),
	}
}

// Enter highlights the entity under the pointer. Entities missing from the
// latest overlaid frame are ignored. It reports whether the state changed.
func (l *Layer) Enter(id core.EntityID) bool {
	if _, ok := l.latest[id]; !ok {
		return false
	}
	if _, ok := l.highlighted[id]; ok {
		return false
	}
	l.highlighted[id] = struct{}{}
	return true
}

// Leave resets every entity to normal. The reset is a full overwrite, so
// calling it with nothing highlighted is harmless.
func (l *Layer) Leave() {
	clear(l.highlighted)
}

// Click returns the selection for the entity, using its attributes from
// the latest overlaid frame. Highlight state is left as is.
func (l *Layer) Click(id core.EntityID) (core.Selection, bool) {
	p, ok := l.latest[id]
	if !ok {
		return core.Selection{}, false
	}
	return core.Selection{ID: p.ID, Attributes: p.Attributes}, true
}

// Overlay returns a copy of frame with each point's icon state taken from
// the highlight map. Position and heading pass through unchanged. The
// frame becomes the reference for presence checks of later pointer events.
func (l *Layer) Overlay(frame core.RenderFrame) core.RenderFrame {
	out := frame.Clone()

	clear(l.latest)
	for i := range out.Points {
		p := &out.Points[i]
		if _, ok := l.highlighted[p.ID]; ok {
			p.Icon = core.IconHighlighted
		} else {
			p.Icon = core.IconNormal
		}
		l.latest[p.ID] = *p
	}
	return out
}

// IsHighlighted reports whether the entity is highlighted.
func (l *Layer) IsHighlighted(id core.EntityID) bool {
	_, ok := l.highlighted[id]
	return ok
}

// Highlighted returns the highlighted ids in sorted order.
func (l *Layer) Highlighted() []core.EntityID {
	ids := make([]core.EntityID, 0, len(l.highlighted))
	for id := range l.highlighted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of highlighted entities.
func (l *Layer) Len() int {
	return len(l.highlighted)
}
