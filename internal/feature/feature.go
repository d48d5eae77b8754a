// Package feature encodes frames and trails as GeoJSON feature collections
// for the map renderer.
package feature

import (
	"math"
	"slices"

	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Property keys set on every point feature. They win over attributes of
// the same name coming from the source.
const (
	PropID         = "id"
	PropHeading    = "heading"
	PropIconRotate = "icon-rotate"
	PropIconState  = "icon-state"
	PropIconImage  = "icon-image"
	PropColor      = "color"
)

// Encoder builds feature collections in lon/lat for one projection and style.
type Encoder struct {
	proj  geo.Projection
	style Style
}

// NewEncoder creates an encoder.
func NewEncoder(proj geo.Projection, style Style) *Encoder {
	return &Encoder{proj: proj, style: style}
}

// Points encodes one frame as point features, one per entity.
func (e *Encoder) Points(frame core.RenderFrame) geom.GeoJSONFeatureCollection {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(frame.Points))
	for _, p := range frame.Points {
		props := make(map[string]interface{}, len(p.Attributes)+5)
		for k, v := range p.Attributes {
			props[k] = v
		}
		props[PropID] = string(p.ID)
		props[PropHeading] = p.Heading
		props[PropIconRotate] = Bearing(p.Heading)
		props[PropIconState] = string(p.Icon)
		props[PropIconImage] = e.iconFor(p.Icon)

		fc = append(fc, geom.GeoJSONFeature{
			ID:         string(p.ID),
			Geometry:   e.proj.Point(p.Position).AsGeometry(),
			Properties: props,
		})
	}
	return fc
}

// Trails encodes every trail as a line feature, ordered by entity id so
// repeated publishes are stable.
func (e *Encoder) Trails(trails map[core.EntityID]core.Polyline) geom.GeoJSONFeatureCollection {
	ids := make([]core.EntityID, 0, len(trails))
	for id := range trails {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fc := make(geom.GeoJSONFeatureCollection, 0, len(ids))
	for _, id := range ids {
		fc = append(fc, geom.GeoJSONFeature{
			ID:       string(id),
			Geometry: e.proj.LineString(trails[id]).AsGeometry(),
			Properties: map[string]interface{}{
				PropID:    string(id),
				PropColor: e.style.TrailColor,
			},
		})
	}
	return fc
}

func (e *Encoder) iconFor(state core.IconState) string {
	if state == core.IconHighlighted {
		return e.style.HighlightIcon
	}
	return e.style.Icon
}

// Bearing converts a heading (0° along +X, counter-clockwise) into the
// clockwise-from-north rotation map renderers apply to icons, in [0, 360).
func Bearing(heading float64) float64 {
	b := math.Mod(90-heading, 360)
	if b < 0 {
		b += 360
	}
	return b
}
