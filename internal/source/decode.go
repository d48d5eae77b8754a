// Package source fetches flight snapshots from the positions service and
// validates them before they reach the engine.
package source

import (
	"errors"
	"fmt"
	"math"

	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/pkg/core"
	geojson "github.com/paulmach/go.geojson"
)

var (
	// ErrSource is returned when a snapshot cannot be fetched or parsed.
	ErrSource = errors.New("snapshot source error")
	// ErrGeometryMismatch is returned when a feature is not a Point.
	ErrGeometryMismatch = errors.New("non-point geometry in snapshot")
)

// headingKeys are the properties checked, in order, for a heading hint.
var headingKeys = []string{"heading", "rotation", "track"}

// Decode parses a GeoJSON FeatureCollection into a snapshot. A single bad
// feature rejects the whole collection.
func Decode(data []byte, proj geo.Projection) (core.Snapshot, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: decode feature collection: %w", ErrSource, err)
	}

	entities := make([]core.Entity, 0, len(fc.Features))
	seen := make(map[core.EntityID]struct{}, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			return core.Snapshot{}, fmt.Errorf("%w: feature %d is null", ErrSource, i)
		}
		id, ok := featureID(f)
		if !ok {
			return core.Snapshot{}, fmt.Errorf("%w: feature %d has no id", ErrSource, i)
		}
		if _, dup := seen[id]; dup {
			return core.Snapshot{}, fmt.Errorf("%w: duplicate id %q", ErrSource, id)
		}
		seen[id] = struct{}{}

		if f.Geometry == nil || f.Geometry.Type != geojson.GeometryPoint {
			return core.Snapshot{}, fmt.Errorf("%w: feature %q has %s geometry", ErrGeometryMismatch, id, geometryType(f))
		}
		if len(f.Geometry.Point) < 2 {
			return core.Snapshot{}, fmt.Errorf("%w: feature %q point has %d coordinates", ErrSource, id, len(f.Geometry.Point))
		}

		pos, err := proj.Forward(f.Geometry.Point[0], f.Geometry.Point[1])
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: feature %q: %w", ErrSource, id, err)
		}

		entities = append(entities, core.Entity{
			ID:         id,
			Position:   pos,
			Heading:    headingHint(f.Properties),
			Attributes: core.Attributes(copyProps(f.Properties)),
		})
	}

	return core.Snapshot{Entities: entities}, nil
}

func featureID(f *geojson.Feature) (core.EntityID, bool) {
	if id, ok := core.EntityIDFrom(f.ID); ok {
		return id, true
	}
	return core.EntityIDFrom(f.Properties["id"])
}

func geometryType(f *geojson.Feature) string {
	if f.Geometry == nil {
		return "null"
	}
	return string(f.Geometry.Type)
}

func headingHint(props map[string]interface{}) *float64 {
	for _, k := range headingKeys {
		v, ok := props[k].(float64)
		if ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return &v
		}
	}
	return nil
}

func copyProps(props map[string]interface{}) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
