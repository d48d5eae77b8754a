// Package trail accumulates per-entity position history for the session.
package trail

import (
	"iter"

	"github.com/airtrail/airtrail/pkg/core"
)

// Accumulator owns every entity's trail polyline. Trails only grow:
// positions are appended and never removed while the process runs.
// There is no retention cap; memory grows with fleet size and session
// length.
//
// Accumulator is not safe for concurrent use; the engine loop is its only writer.
type Accumulator struct {
	trails map[core.EntityID]core.Polyline
	points int
}

// New creates an empty accumulator.
func New() *Accumulator {
	return &Accumulator{
		trails: make(map[core.EntityID]core.Polyline),
	}
}

// Merge appends each incoming position to its entity's trail, starting a
// new trail on first sighting. No deduplication is performed, so callers
// must merge each snapshot transition exactly once, never per frame.
func (a *Accumulator) Merge(positions iter.Seq2[core.EntityID, core.Position]) {
	for id, pos := range positions {
		a.trails[id] = append(a.trails[id], pos)
		a.points++
	}
}

// Trails returns a deep copy of every trail for publishing.
func (a *Accumulator) Trails() map[core.EntityID]core.Polyline {
	out := make(map[core.EntityID]core.Polyline, len(a.trails))
	for id, p := range a.trails {
		out[id] = p.Clone()
	}
	return out
}

// Trail returns a copy of one entity's trail.
func (a *Accumulator) Trail(id core.EntityID) (core.Polyline, bool) {
	p, ok := a.trails[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Len returns the number of positions in an entity's trail.
func (a *Accumulator) Len(id core.EntityID) int {
	return len(a.trails[id])
}

// Count returns the number of entities with a trail.
func (a *Accumulator) Count() int {
	return len(a.trails)
}

// Points returns the total number of positions held across all trails.
func (a *Accumulator) Points() int {
	return a.points
}
