package geo

import (
	"github.com/airtrail/airtrail/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// LineString builds a lon/lat geometry from a planar trail.
// A trail seen only once yields a single-vertex line, which map renderers
// draw as nothing until a second position arrives.
func (p Projection) LineString(trail core.Polyline) geom.LineString {
	flatCoords := make([]float64, 0, len(trail)*2)
	for _, pos := range trail {
		lon, lat := p.Inverse(pos)
		flatCoords = append(flatCoords, lon, lat)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq)
}
