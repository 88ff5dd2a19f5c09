// Package geom clips and filters decoded tile features against a circular
// buffer, an isochrone polygon or a containing point.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// bufferSteps is the number of segments approximating the circle.
const bufferSteps = 64

// CreateBuffer returns a closed polygon approximating the geodesic circle of
// radiusKm around (lat, lon).
func CreateBuffer(lat, lon, radiusKm float64) orb.Polygon {
	center := orb.Point{lon, lat}
	meters := radiusKm * 1000

	ring := make(orb.Ring, 0, bufferSteps+1)
	for i := 0; i < bufferSteps; i++ {
		bearing := -360 * float64(i) / bufferSteps
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, meters))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
