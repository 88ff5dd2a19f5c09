package geom

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	sf "github.com/peterstace/simplefeatures/geom"
)

// Union merges two polygonal geometries. The result is a Polygon or a
// MultiPolygon when the inputs do not touch.
func Union(a, b orb.Geometry) (orb.Geometry, error) {
	ga, err := toSimple(a)
	if err != nil {
		return nil, fmt.Errorf("union lhs: %w", err)
	}
	gb, err := toSimple(b)
	if err != nil {
		return nil, fmt.Errorf("union rhs: %w", err)
	}
	u, err := sf.Union(ga, gb)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	out, err := fromSimple(u)
	if err != nil {
		return nil, err
	}
	switch out.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return out, nil
	default:
		return nil, fmt.Errorf("union produced %s", out.GeoJSONType())
	}
}

func toSimple(g orb.Geometry) (sf.Geometry, error) {
	switch t := g.(type) {
	case orb.Polygon:
		g = closeRings(t)
	case orb.MultiPolygon:
		mp := make(orb.MultiPolygon, len(t))
		for i, p := range t {
			mp[i] = closeRings(p)
		}
		g = mp
	default:
		return sf.Geometry{}, errors.New("only polygons can be merged")
	}
	data, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return sf.Geometry{}, fmt.Errorf("encode geometry: %w", err)
	}
	out, err := sf.UnmarshalGeoJSON(data)
	if err != nil {
		return sf.Geometry{}, fmt.Errorf("decode geometry: %w", err)
	}
	return out, nil
}

func fromSimple(g sf.Geometry) (orb.Geometry, error) {
	data, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode union result: %w", err)
	}
	gj, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("decode union result: %w", err)
	}
	return gj.Geometry(), nil
}

func closeRings(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for _, r := range p {
		if len(r) > 0 && !r.Closed() {
			r = append(r.Clone(), r[0])
		}
		out = append(out, r)
	}
	return out
}
