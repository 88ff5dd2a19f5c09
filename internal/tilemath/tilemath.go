// Package tilemath converts between geographic coordinates and slippy-map
// tile indices and computes the tiles covering a radius around a point.
package tilemath

import (
	"math"
)

// EarthRadiusKm is the spherical radius used for destination points.
const EarthRadiusKm = 6371.0

// Tile is a Web-Mercator tile index. Values are not clamped, so inputs near
// the poles or outside the valid longitude range produce out-of-range tiles.
type Tile struct {
	X int
	Y int
	Z int
}

// Bounds is a lat/lon rectangle in degrees.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

func LonLatToTile(lon, lat float64, zoom int) Tile {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x := math.Floor((lon + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)
	return Tile{X: int(x), Y: int(y), Z: zoom}
}

// DestinationPoint returns the point reached by travelling distanceKm from
// (lat, lon) along the initial bearing, on a sphere of EarthRadiusKm.
func DestinationPoint(lat, lon, distanceKm, bearingDeg float64) (float64, float64) {
	lat1 := lat * math.Pi / 180
	lon1 := lon * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	d := distanceKm / EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)
	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// BufferBounds approximates the rectangle around a point by moving radiusKm
// along the four cardinal bearings. East and west are taken from the
// displacement at the origin latitude.
func BufferBounds(lat, lon, radiusKm float64) Bounds {
	north, _ := DestinationPoint(lat, lon, radiusKm, 0)
	south, _ := DestinationPoint(lat, lon, radiusKm, 180)
	_, east := DestinationPoint(lat, lon, radiusKm, 90)
	_, west := DestinationPoint(lat, lon, radiusKm, 270)
	return Bounds{North: north, South: south, East: east, West: west}
}

// TilesInBuffer lists every tile of the given zoom intersecting the buffer
// rectangle, x-major then y, both ranges inclusive.
func TilesInBuffer(lat, lon, radiusKm float64, zoom int) []Tile {
	b := BufferBounds(lat, lon, radiusKm)
	nw := LonLatToTile(b.West, b.North, zoom)
	se := LonLatToTile(b.East, b.South, zoom)

	minX, maxX := minmax(nw.X, se.X)
	minY, maxY := minmax(nw.Y, se.Y)

	out := make([]Tile, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			out = append(out, Tile{X: x, Y: y, Z: zoom})
		}
	}
	return out
}

// EarthCircumferenceKm is the equatorial circumference used to size tiles.
const EarthCircumferenceKm = 40075.0

// AdjacentTiles returns the tiles around the one containing the point. The
// x half-width uses the tile ground width at the point's latitude; the y
// half-width uses the equatorial tile size.
func AdjacentTiles(lat, lon float64, zoom int, radiusKm float64) []Tile {
	center := LonLatToTile(lon, lat, zoom)
	tileKm := EarthCircumferenceKm / math.Exp2(float64(zoom))
	tilesX := int(math.Ceil(radiusKm / (tileKm * math.Cos(lat*math.Pi/180))))
	tilesY := int(math.Ceil(radiusKm / tileKm))

	out := make([]Tile, 0, (2*tilesX+1)*(2*tilesY+1))
	for dx := -tilesX; dx <= tilesX; dx++ {
		for dy := -tilesY; dy <= tilesY; dy++ {
			out = append(out, Tile{X: center.X + dx, Y: center.Y + dy, Z: zoom})
		}
	}
	return out
}

func minmax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
