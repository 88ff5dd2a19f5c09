package tilemerge

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
	"github.com/mohammed-shakir/propscope/internal/geom"
)

// EntityIDProperty holds the stable id shared by the pieces of one entity.
const EntityIDProperty = "geohash_id"

type Diagnostics struct {
	TotalIn       int
	TotalOut      int
	Unions        int
	UnionFailures int
}

// Merge folds per-tile features, in tile order, into one collection.
// Polygonal features carrying an entity id are unioned with earlier pieces
// of the same entity and keep the first piece's properties. Output holds
// the merged entities in first-seen order followed by every other feature
// in encounter order.
func Merge(ctx context.Context, log *slog.Logger, perTile [][]*geojson.Feature) ([]*geojson.Feature, Diagnostics) {
	var diag Diagnostics
	byID := map[string]*geojson.Feature{}
	var order []string
	var other []*geojson.Feature

	for ti, feats := range perTile {
		for _, f := range feats {
			if f == nil {
				continue
			}
			diag.TotalIn++

			key := entityKey(f.Properties[EntityIDProperty])
			if key == "" || !polygonal(f.Geometry) {
				other = append(other, f)
				continue
			}

			prev, seen := byID[key]
			if !seen {
				byID[key] = f
				order = append(order, key)
				continue
			}

			u, err := geom.Union(firstPolygon(prev.Geometry), firstPolygon(f.Geometry))
			observability.ObserveUnion(err)
			if err != nil {
				diag.UnionFailures++
				log.WarnContext(ctx, "union of split entity failed, keeping previous geometry",
					"entity", key, "tile", ti, "err", err)
				continue
			}
			diag.Unions++
			byID[key] = model.WithGeometry(prev, u)
		}
	}

	out := make([]*geojson.Feature, 0, len(order)+len(other))
	for _, k := range order {
		out = append(out, byID[k])
	}
	out = append(out, other...)
	diag.TotalOut = len(out)
	return out, diag
}

func polygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

// firstPolygon narrows a MultiPolygon to its first part.
func firstPolygon(g orb.Geometry) orb.Geometry {
	if mp, ok := g.(orb.MultiPolygon); ok && len(mp) > 0 {
		return mp[0]
	}
	return g
}

// entityKey canonicalises an id so that the string "12" and the number 12
// do not collide. Empty, zero and false ids count as absent.
func entityKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if t == "" {
			return ""
		}
		return "s:" + t
	case bool:
		if !t {
			return ""
		}
		return "b:true"
	case float64:
		if t == 0 {
			return ""
		}
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return entityKey(float64(t))
	case int:
		return entityKey(int64(t))
	case int64:
		if t == 0 {
			return ""
		}
		return "n:" + strconv.FormatInt(t, 10)
	case uint64:
		if t == 0 {
			return ""
		}
		return "n:" + strconv.FormatUint(t, 10)
	default:
		return ""
	}
}
