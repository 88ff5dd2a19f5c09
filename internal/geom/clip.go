package geom

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/propscope/internal/besteffort"
	"github.com/mohammed-shakir/propscope/internal/core/model"
)

type Clipper struct {
	log *slog.Logger
}

func NewClipper(log *slog.Logger) *Clipper {
	if log == nil {
		log = slog.Default()
	}
	return &Clipper{log: log}
}

// FindFeaturesWithinBuffer keeps the parts of features that fall inside the
// radiusKm buffer around (lat, lon). Points are kept whole, polygons are
// clipped to the buffer's bounding box and lines are split at the buffer edge
// with each inside piece returned as its own feature. A feature that fails
// to process is dropped and logged.
func (c *Clipper) FindFeaturesWithinBuffer(lat, lon, radiusKm float64, features []*geojson.Feature) []*geojson.Feature {
	buffer := CreateBuffer(lat, lon, radiusKm)
	bound := buffer.Bound()

	return besteffort.Map(features, func(f *geojson.Feature) ([]*geojson.Feature, error) {
		return clipFeature(f, buffer, bound)
	}, func(i int, err error) {
		c.log.Warn("feature clipping failed", "index", i, "err", err)
	})
}

func clipFeature(f *geojson.Feature, buffer orb.Polygon, bound orb.Bound) ([]*geojson.Feature, error) {
	if f == nil || f.Geometry == nil {
		return nil, nil
	}
	switch g := f.Geometry.(type) {
	case orb.Point:
		if planar.PolygonContains(buffer, g) {
			return []*geojson.Feature{f}, nil
		}
		return nil, nil

	case orb.MultiPoint:
		for _, p := range g {
			if planar.PolygonContains(buffer, p) {
				return []*geojson.Feature{f}, nil
			}
		}
		return nil, nil

	case orb.Polygon, orb.MultiPolygon:
		clipped := clip.Geometry(bound, orb.Clone(g))
		if isEmpty(clipped) {
			return nil, nil
		}
		return []*geojson.Feature{model.WithGeometry(f, clipped)}, nil

	case orb.LineString:
		return splitFeature(f, []orb.LineString{g}, buffer), nil

	case orb.MultiLineString:
		return splitFeature(f, g, buffer), nil

	default:
		return nil, fmt.Errorf("unsupported geometry %s", f.Geometry.GeoJSONType())
	}
}

func splitFeature(f *geojson.Feature, lines []orb.LineString, buffer orb.Polygon) []*geojson.Feature {
	var out []*geojson.Feature
	for _, ls := range lines {
		for _, pc := range splitLine(ls, buffer[0]) {
			if pc.startsInside(buffer) {
				out = append(out, model.WithGeometry(f, pc.line))
			}
		}
	}
	return out
}

// PolygonContainingPoint returns the first Polygon or MultiPolygon feature
// containing (lat, lon), or nil.
func PolygonContainingPoint(features []*geojson.Feature, lat, lon float64) *geojson.Feature {
	pt := orb.Point{lon, lat}
	for _, f := range features {
		if f != nil && Contains(f.Geometry, pt) {
			return f
		}
	}
	return nil
}

// Contains reports whether a Polygon or MultiPolygon geometry contains pt.
// Other geometry types never contain a point.
func Contains(g orb.Geometry, pt orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// FilterFeaturesInIsochrone keeps Point features that fall inside poly.
func FilterFeaturesInIsochrone(poly orb.Geometry, features []*geojson.Feature) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		if pt, ok := f.Geometry.(orb.Point); ok && Contains(poly, pt) {
			out = append(out, f)
		}
	}
	return out
}

func isEmpty(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return true
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		for _, p := range g {
			if len(p) > 0 && len(p[0]) > 0 {
				return false
			}
		}
		return true
	}
	return false
}
