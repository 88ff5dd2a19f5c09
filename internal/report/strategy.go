package report

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/geom"
)

// OverviewGroup is the group whose features are kept only when they cover
// the report point.
const OverviewGroup = "Overview"

// Strategy selects which fetched features of a subgroup end up in its
// feature set. The implementations below are the only ones.
type Strategy interface {
	Name() string
	apply(sg model.Subgroup, feats []*geojson.Feature) (features, features2Km []*geojson.Feature)
}

// StrategyOverview keeps polygons containing the report point, unclipped.
type StrategyOverview struct {
	Point orb.Point
}

// StrategyIsochrone keeps points inside precomputed travel-time polygons.
// Near yields the short-range list and Far the main one.
type StrategyIsochrone struct {
	Near orb.Geometry
	Far  orb.Geometry
}

// StrategyBuffer clips features to the subgroup's radius around the point.
type StrategyBuffer struct {
	Center  model.Coordinate
	Clipper *geom.Clipper
}

func (StrategyOverview) Name() string  { return "overview" }
func (StrategyIsochrone) Name() string { return "isochrone" }
func (StrategyBuffer) Name() string    { return "buffer" }

func (s StrategyOverview) apply(_ model.Subgroup, feats []*geojson.Feature) ([]*geojson.Feature, []*geojson.Feature) {
	out := make([]*geojson.Feature, 0, len(feats))
	for _, f := range feats {
		if f != nil && geom.Contains(f.Geometry, s.Point) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s StrategyIsochrone) apply(_ model.Subgroup, feats []*geojson.Feature) ([]*geojson.Feature, []*geojson.Feature) {
	return geom.FilterFeaturesInIsochrone(s.Far, feats), geom.FilterFeaturesInIsochrone(s.Near, feats)
}

func (s StrategyBuffer) apply(sg model.Subgroup, feats []*geojson.Feature) ([]*geojson.Feature, []*geojson.Feature) {
	return s.Clipper.FindFeaturesWithinBuffer(s.Center.Lat, s.Center.Lon, sg.BufferKm(), feats), nil
}

// strategyFor picks the strategy of a group. Isochrone filtering only
// applies when enabled, requested by the group and both polygons exist.
func (s *Service) strategyFor(g model.Group, at model.Coordinate, isochrones []orb.Geometry) Strategy {
	switch {
	case g.Name == OverviewGroup:
		return StrategyOverview{Point: at.Point()}
	case s.opts.IsochroneEnabled && g.IsochroneFiltering && len(isochrones) >= 2:
		return StrategyIsochrone{Near: isochrones[0], Far: isochrones[1]}
	default:
		return StrategyBuffer{Center: at, Clipper: s.clipper}
	}
}
