package tiles

import (
	"bytes"
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/mohammed-shakir/propscope/internal/tilemath"
)

// LayerProperty is the attribute carrying the name of the tile layer a
// decoded feature came from.
const LayerProperty = "vt_layer"

var gzipMagic = []byte{0x1f, 0x8b}

// Decode parses a Mapbox vector tile, projects it to WGS84 and returns the
// features of the requested layers (all layers when none are named), in
// layer then feature order.
func Decode(body []byte, t tilemath.Tile, layers ...string) ([]*geojson.Feature, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if t.X < 0 || t.Y < 0 || t.Z < 0 {
		return nil, fmt.Errorf("tile %d/%d/%d out of range", t.Z, t.X, t.Y)
	}

	var (
		ls  mvt.Layers
		err error
	)
	if bytes.HasPrefix(body, gzipMagic) {
		ls, err = mvt.UnmarshalGzipped(body)
	} else {
		ls, err = mvt.Unmarshal(body)
	}
	if err != nil {
		return nil, fmt.Errorf("decode tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}

	want := make(map[string]bool, len(layers))
	for _, l := range layers {
		want[l] = true
	}

	var out []*geojson.Feature
	for _, l := range ls {
		if len(want) > 0 && !want[l.Name] {
			continue
		}
		single := mvt.Layers{l}
		single.ProjectToWGS84(maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z)))
		for _, f := range l.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			if f.Properties == nil {
				f.Properties = geojson.Properties{}
			}
			f.Properties[LayerProperty] = l.Name
			out = append(out, f)
		}
	}
	return out, nil
}
