package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/tilemath"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memManifests struct {
	mu      sync.Mutex
	byType  map[string]model.Manifest
	updated []model.Manifest
}

func (m *memManifests) Manifest(_ context.Context, pt string) (model.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	man, ok := m.byType[pt]
	if !ok {
		return model.Manifest{}, fmt.Errorf("manifest type %q: %w", pt, ErrNotFound)
	}
	return man, nil
}

func (m *memManifests) UpdateManifest(_ context.Context, man model.Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byType[man.PropertyType]; !ok {
		return ErrNotFound
	}
	m.byType[man.PropertyType] = man
	m.updated = append(m.updated, man)
	return nil
}

type memReports struct {
	mu        sync.Mutex
	reports   map[string]model.Report
	sets      []model.FeatureSetDocument
	metas     []model.MetadataDocument
	failSets  error
	completes int
}

func newMemReports() *memReports {
	return &memReports{reports: map[string]model.Report{}}
}

func (r *memReports) CreateReport(_ context.Context, rep model.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.ID] = rep
	return nil
}

func (r *memReports) Report(_ context.Context, id string) (model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return model.Report{}, ErrNotFound
	}
	return rep, nil
}

func (r *memReports) InsertFeatureSets(_ context.Context, docs []model.FeatureSetDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSets != nil {
		return r.failSets
	}
	for _, d := range docs {
		for _, have := range r.sets {
			if have.ReportID == d.ReportID && have.GroupName == d.GroupName && have.SubgroupName == d.SubgroupName {
				return errors.New("duplicate feature set")
			}
		}
		r.sets = append(r.sets, d)
	}
	return nil
}

func (r *memReports) InsertMetadata(_ context.Context, docs []model.MetadataDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metas = append(r.metas, docs...)
	return nil
}

func (r *memReports) MarkComplete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return ErrNotFound
	}
	rep.Complete = true
	r.reports[id] = rep
	r.completes++
	return nil
}

func (r *memReports) ReportsInCells(_ context.Context, cells []string) ([]model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Report
	for _, rep := range r.reports {
		if slices.Contains(cells, rep.H3Cell) {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r *memReports) set(group, subgroup string) (model.FeatureSetDocument, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.sets {
		if d.GroupName == group && d.SubgroupName == subgroup {
			return d, true
		}
	}
	return model.FeatureSetDocument{}, false
}

type fakeStyle struct {
	layers  []tiles.StyleLayer
	maxZoom map[string]int
}

func (s fakeStyle) Layers(context.Context) ([]tiles.StyleLayer, error) {
	if s.layers == nil {
		return nil, errors.New("style unavailable")
	}
	return s.layers, nil
}

func (s fakeStyle) LayerZoom(_ context.Context, _, layer string) tiles.LayerZoom {
	lz := tiles.LayerZoom{MinZoom: tiles.DefaultMinZoom, MaxZoom: tiles.DefaultMaxZoom}
	if z, ok := s.maxZoom[layer]; ok {
		lz.MaxZoom = z
	}
	return lz
}

// tileWorld serves each feature only from the tile holding its anchor point,
// like a real tile service would.
type tileWorld struct {
	mu       sync.Mutex
	byLayer  map[string][]*geojson.Feature
	requests []tilemath.Tile
}

func (w *tileWorld) Fetch(_ context.Context, _ string, t tilemath.Tile, layers ...string) ([]*geojson.Feature, error) {
	w.mu.Lock()
	w.requests = append(w.requests, t)
	w.mu.Unlock()

	var out []*geojson.Feature
	for _, l := range layers {
		for _, f := range w.byLayer[l] {
			anchor := f.Geometry.Bound().Center()
			if tilemath.LonLatToTile(anchor.Lon(), anchor.Lat(), t.Z) == t {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) ReportCompleted(_ context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

type staticCells struct {
	cell string
	ring []string
}

func (c staticCells) CellFor(model.Coordinate) (string, error) { return c.cell, nil }

func (c staticCells) Neighborhood(model.Coordinate, int) ([]string, error) { return c.ring, nil }

func box(lon, lat, half float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon - half, lat - half}, {lon + half, lat - half},
		{lon + half, lat + half}, {lon - half, lat + half}, {lon - half, lat - half},
	}}
}

func named(g orb.Geometry, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties = props
	return f
}

func names(fs []*geojson.Feature) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Properties.MustString("name", ""))
	}
	slices.Sort(out)
	return out
}
