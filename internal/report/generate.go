package report

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
	"github.com/mohammed-shakir/propscope/internal/filter"
	"github.com/mohammed-shakir/propscope/internal/logger"
	"github.com/mohammed-shakir/propscope/internal/tilemath"
)

// generate runs every manifest group of rep and marks it complete. Group
// failures are logged and skipped; nothing is returned to the creator.
func (s *Service) generate(ctx context.Context, rep model.Report, zoom int, isochrones []orb.Geometry) {
	start := time.Now()
	at := rep.Location.Coordinate()

	var groups, failed []string
	m, err := s.manifests.Manifest(ctx, rep.PropertyType)
	if err != nil {
		s.log.ErrorContext(ctx, "manifest unavailable, completing report without groups",
			"property_type", rep.PropertyType, "err", err)
	}
	for _, g := range m.Groups {
		groups = append(groups, g.Name)
		if err := s.runGroup(ctx, rep.ID, g, at, zoom, isochrones); err != nil {
			failed = append(failed, g.Name)
			observability.IncGroupFailure()
			s.log.ErrorContext(ctx, "group failed", "group", g.Name, "err", err)
		}
	}

	outcome := "ok"
	if err := s.reports.MarkComplete(ctx, rep.ID); err != nil {
		outcome = "error"
		s.log.ErrorContext(ctx, "mark report complete failed", "err", err)
	}
	observability.ObserveReport(outcome, time.Since(start).Seconds())

	ev := Event{
		Version:      1,
		ReportID:     rep.ID,
		PropertyType: rep.PropertyType,
		Latitude:     at.Lat,
		Longitude:    at.Lon,
		Groups:       groups,
		FailedGroups: failed,
		CompletedAt:  s.opts.Now(),
	}
	if err := s.notifier.ReportCompleted(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "completion event not published", "err", err)
	}
	s.log.InfoContext(ctx, "report complete",
		"groups", len(groups), "failed_groups", len(failed), "dur", time.Since(start).String())
}

type subgroupResult struct {
	features    []*geojson.Feature
	features2Km []*geojson.Feature
}

// runGroup fetches every subgroup concurrently, applies the group strategy
// and stores one feature set and one metadata document per subgroup.
func (s *Service) runGroup(ctx context.Context, reportID string, g model.Group, at model.Coordinate, zoom int, isochrones []orb.Geometry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	ctx = logger.WithGroup(ctx, g.Name)
	strategy := s.strategyFor(g, at, isochrones)

	results := make([]subgroupResult, len(g.Subgroups))
	var eg errgroup.Group
	eg.SetLimit(s.opts.SubgroupConcurrency)
	for i, sg := range g.Subgroups {
		eg.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("subgroup %q: panic: %v", sg.Name, rec)
				}
			}()
			feats := s.fetchSubgroup(ctx, sg, at, zoom)
			results[i].features, results[i].features2Km = strategy.apply(sg, feats)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	now := s.opts.Now()
	sets := make([]model.FeatureSetDocument, 0, len(g.Subgroups))
	metas := make([]model.MetadataDocument, 0, len(g.Subgroups))
	for i, sg := range g.Subgroups {
		sets = append(sets, model.FeatureSetDocument{
			ReportID:            reportID,
			GroupName:           g.Name,
			GroupDisplayName:    g.DisplayName,
			SubgroupName:        sg.Name,
			SubgroupDisplayName: sg.DisplayName,
			Features:            nonNil(results[i].features),
			Features2Km:         nonNil(results[i].features2Km),
			Overview:            sg.Overview,
			CreatedAt:           now,
		})
		metas = append(metas, model.MetadataDocument{
			ReportID:     reportID,
			GroupName:    g.Name,
			SubgroupName: sg.Name,
			Metadata:     ExtractMetadata(results[i].features, sg.MetadataFields),
			CreatedAt:    now,
		})
	}

	if err := s.reports.InsertFeatureSets(ctx, sets); err != nil {
		s.log.ErrorContext(ctx, "storing feature sets failed", "err", err)
	}
	if err := s.reports.InsertMetadata(ctx, metas); err != nil {
		s.log.ErrorContext(ctx, "storing metadata failed", "err", err)
	}
	s.log.DebugContext(ctx, "group stored",
		"strategy", strategy.Name(), "subgroups", len(g.Subgroups))
	return nil
}

// fetchSubgroup returns the filtered features of one subgroup's layer around
// at. Subgroups without a layer yield nothing.
func (s *Service) fetchSubgroup(ctx context.Context, sg model.Subgroup, at model.Coordinate, zoom int) []*geojson.Feature {
	if !sg.Fetchable() {
		s.log.DebugContext(ctx, "subgroup has no tile layer", "subgroup", sg.Name)
		return nil
	}
	z := s.style.LayerZoom(ctx, sg.TileSource, sg.SourceLayer).Clamp(zoom)
	ts := tilemath.TilesInBuffer(at.Lat, at.Lon, SearchRadiusKm, z)
	feats := s.tiles.FetchTileData(ctx, ts, sg.TileSource, sg.SourceLayer, z)
	return filter.Compile(sg.Filter, s.log).Apply(feats)
}

// ExtractMetadata returns, per feature, the declared fields the feature
// carries with a non-null value.
func ExtractMetadata(feats []*geojson.Feature, fields []string) []map[string]any {
	out := make([]map[string]any, 0, len(feats))
	for _, f := range feats {
		m := map[string]any{}
		if f != nil {
			for _, k := range fields {
				if v, ok := f.Properties[k]; ok && v != nil {
					m[k] = v
				}
			}
		}
		out = append(out, m)
	}
	return out
}

func nonNil(fs []*geojson.Feature) []*geojson.Feature {
	if fs == nil {
		return []*geojson.Feature{}
	}
	return fs
}
