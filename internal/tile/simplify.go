package tile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// simplifyGeometry applies Douglas-Peucker simplification at the given
// tolerance (in WGS84 degrees) to a Polygon or MultiPolygon.
func simplifyGeometry(geom orb.Geometry, tolerance float64) orb.Geometry {
	return simplify.DouglasPeucker(tolerance).Simplify(geom)
}
