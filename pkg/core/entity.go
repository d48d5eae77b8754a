// pkg/core/entity.go
package core

import (
	"encoding/json"
	"iter"
	"math"
	"strconv"
	"time"
)

// EntityID is the stable identifier of a tracked entity (e.g. a flight).
type EntityID string

// Position is a coordinate in the shared planar projection.
type Position struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
}

// Sub returns the displacement p - o.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y}
}

// Attributes is the descriptive property bag attached to an entity.
// It is narrowed at the snapshot boundary and passed through untouched.
type Attributes map[string]any

// Entity is one tracked entity as seen in a snapshot.
type Entity struct {
	ID         EntityID
	Position   Position
	Heading    *float64 // optional hint from the source, degrees
	Attributes Attributes
}

// Snapshot is one full replacement set of entity positions.
// Entity ids are unique within a snapshot.
type Snapshot struct {
	Seq      uint64
	Received time.Time
	Entities []Entity
}

// Len returns the number of entities in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Entities)
}

// Positions yields every (id, position) pair in snapshot order.
func (s Snapshot) Positions() iter.Seq2[EntityID, Position] {
	return func(yield func(EntityID, Position) bool) {
		for _, e := range s.Entities {
			if !yield(e.ID, e.Position) {
				return
			}
		}
	}
}

// EntityIDFrom normalises a decoded GeoJSON id (string or number) into an
// EntityID. Integral numbers render without a fraction so 7 and "7" match.
func EntityIDFrom(v any) (EntityID, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return EntityID(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return EntityID(strconv.FormatInt(int64(t), 10)), true
		}
		return EntityID(strconv.FormatFloat(t, 'g', -1, 64)), true
	case int:
		return EntityID(strconv.Itoa(t)), true
	case int64:
		return EntityID(strconv.FormatInt(t, 10)), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return EntityID(strconv.FormatInt(i, 10)), true
		}
		return EntityIDFrom(string(t))
	default:
		return "", false
	}
}
