package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/airtrail/airtrail/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// PROJECTIONS
// Interpolation runs in a planar projection. Sources deliver WGS84 lon/lat
// (EPSG:4326); by default positions are moved into Web Mercator (EPSG:3857)
// at the boundary and moved back when features are handed to the renderer.

// Projection names the planar space entity positions live in.
type Projection string

const (
	// WebMercator projects lon/lat into EPSG:3857 metres.
	WebMercator Projection = "epsg3857"
	// Identity keeps source coordinates as they are.
	Identity Projection = "none"
)

// ErrInvalidCoordinates is returned when coordinates cannot be projected
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrUnknownProjection is returned for projection names we do not support
var ErrUnknownProjection = errors.New("unknown projection")

// maxMercatorLat is the latitude limit of EPSG:3857.
const maxMercatorLat = 85.05112878

var (
	epsg        = wgs84.EPSG()
	to3857      = epsg.Transform(4326, 3857)
	from3857    = epsg.Transform(3857, 4326)
	lonLatRange = [2]float64{180, 90}
)

// ParseProjection validates a configured projection name.
func ParseProjection(name string) (Projection, error) {
	switch Projection(name) {
	case WebMercator, Identity:
		return Projection(name), nil
	case "":
		return WebMercator, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProjection, name)
	}
}

// Forward moves a lon/lat pair into the projection's planar space.
func (p Projection) Forward(longitude, latitude float64) (core.Position, error) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) || math.IsInf(longitude, 0) || math.IsInf(latitude, 0) {
		return core.Position{}, ErrInvalidCoordinates
	}
	if p != WebMercator {
		return core.Position{X: longitude, Y: latitude}, nil
	}
	if math.Abs(longitude) > lonLatRange[0] || math.Abs(latitude) > lonLatRange[1] {
		return core.Position{}, ErrInvalidCoordinates
	}
	// clamp to the Mercator limit instead of producing infinities at the poles
	latitude = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, latitude))
	x, y, _ := to3857(longitude, latitude, 0)
	return core.Position{X: x, Y: y}, nil
}

// Inverse moves a planar position back to lon/lat.
func (p Projection) Inverse(pos core.Position) (longitude, latitude float64) {
	if p != WebMercator {
		return pos.X, pos.Y
	}
	longitude, latitude, _ = from3857(pos.X, pos.Y, 0)
	return longitude, latitude
}

// Point builds a lon/lat geometry point from a planar position.
func (p Projection) Point(pos core.Position) geom.Point {
	lon, lat := p.Inverse(pos)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: lon, Y: lat},
			Type: geom.DimXY,
		},
	)
}
