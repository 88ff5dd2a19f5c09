package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/tilemath"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

var (
	lon, lat = 77.5946, 12.9716
	around   = orb.Polygon{orb.Ring{
		{lon - 0.001, lat - 0.001}, {lon + 0.001, lat - 0.001},
		{lon + 0.001, lat + 0.001}, {lon - 0.001, lat + 0.001}, {lon - 0.001, lat - 0.001},
	}}
	elsewhere = orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
)

type fakeStyle struct {
	layers []tiles.StyleLayer
	err    error
}

func (s fakeStyle) Layers(context.Context) ([]tiles.StyleLayer, error) { return s.layers, s.err }

type call struct {
	source string
	tile   tilemath.Tile
	layers []string
}

type fakeSource struct {
	bySource map[string][]*geojson.Feature
	errs     map[string]error
	calls    []call
}

func (s *fakeSource) Fetch(_ context.Context, source string, t tilemath.Tile, layers ...string) ([]*geojson.Feature, error) {
	s.calls = append(s.calls, call{source: source, tile: t, layers: layers})
	if err := s.errs[source]; err != nil {
		return nil, err
	}
	return s.bySource[source], nil
}

func polyFeat(g orb.Geometry, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties = props
	return f
}

var cdpStyle = fakeStyle{layers: []tiles.StyleLayer{
	{ID: "background"},
	{ID: DefaultCDPLayerID, Source: "cdp_tiles", SourceLayer: "cdp_zones"},
}}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify_ZoningMatch(t *testing.T) {
	tests := []struct {
		name string
		zone string
		want Result
	}{
		{"allowed", "Residential Main", Result{Allowed: true, Type: "Residential Main"}},
		{"not allowed", "Forest Reserve", Result{Allowed: false, Type: "Forest Reserve"}},
		{"case sensitive", "industrial", Result{Allowed: false, Type: "industrial"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{bySource: map[string][]*geojson.Feature{
				"cdp_tiles": {
					polyFeat(elsewhere, geojson.Properties{"name": "Industrial"}),
					polyFeat(around, geojson.Properties{"name": tt.zone}),
				},
			}}
			got := New(cdpStyle, src, quietLog(), nil).Classify(context.Background(), lon, lat)
			if got != tt.want {
				t.Fatalf("got=%+v want %+v", got, tt.want)
			}
			if len(src.calls) != 1 {
				t.Fatalf("calls=%d want 1", len(src.calls))
			}
			c := src.calls[0]
			wantTile := tilemath.LonLatToTile(lon, lat, 16)
			if c.tile != wantTile || len(c.layers) != 1 || c.layers[0] != "cdp_zones" {
				t.Fatalf("call=%+v want tile %+v layer cdp_zones", c, wantTile)
			}
		})
	}
}

func TestClassify_FallsBackToLandUse(t *testing.T) {
	tests := []struct {
		name  string
		feats []*geojson.Feature
		want  Result
	}{
		{
			name: "landuse allowed",
			feats: []*geojson.Feature{
				polyFeat(around, geojson.Properties{tiles.LayerProperty: "landuse", "class": "residential"}),
			},
			want: Result{Allowed: true, Type: "residential"},
		},
		{
			name: "landuse not allowed",
			feats: []*geojson.Feature{
				polyFeat(around, geojson.Properties{tiles.LayerProperty: "landuse", "class": "cemetery"}),
			},
			want: Result{Allowed: false, Type: "cemetery"},
		},
		{
			name: "landuse without class skipped, building wins",
			feats: []*geojson.Feature{
				polyFeat(around, geojson.Properties{tiles.LayerProperty: "landuse"}),
				polyFeat(around, geojson.Properties{tiles.LayerProperty: "building"}),
			},
			want: Result{Allowed: true, Type: Building},
		},
		{
			name: "nothing containing",
			feats: []*geojson.Feature{
				polyFeat(elsewhere, geojson.Properties{tiles.LayerProperty: "building"}),
				geojson.NewFeature(orb.Point{lon, lat}),
			},
			want: Result{Allowed: false, Type: Undetermined},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{
				bySource: map[string][]*geojson.Feature{"v3": tt.feats},
				errs:     map[string]error{"cdp_tiles": errors.New("tile service down")},
			}
			got := New(cdpStyle, src, quietLog(), nil).Classify(context.Background(), lon, lat)
			if got != tt.want {
				t.Fatalf("got=%+v want %+v", got, tt.want)
			}
			last := src.calls[len(src.calls)-1]
			if last.source != "v3" || last.tile.Z != 15 {
				t.Fatalf("fallback call=%+v", last)
			}
			if len(last.layers) != 2 || last.layers[0] != "landuse" || last.layers[1] != "building" {
				t.Fatalf("fallback layers=%v", last.layers)
			}
		})
	}
}

func TestClassify_StyleFailureUsesFallback(t *testing.T) {
	src := &fakeSource{bySource: map[string][]*geojson.Feature{
		"v3": {polyFeat(around, geojson.Properties{tiles.LayerProperty: "landuse", "class": "commercial"})},
	}}
	c := New(fakeStyle{err: errors.New("style 500")}, src, quietLog(), nil)
	if got := c.Classify(context.Background(), lon, lat); got != (Result{Allowed: true, Type: "commercial"}) {
		t.Fatalf("got=%+v", got)
	}
	if len(src.calls) != 1 {
		t.Fatalf("calls=%d want only the fallback", len(src.calls))
	}
}

func TestClassify_ZoningWithoutNameFallsThrough(t *testing.T) {
	src := &fakeSource{bySource: map[string][]*geojson.Feature{
		"cdp_tiles": {polyFeat(around, geojson.Properties{"zone_code": "R1"})},
	}}
	got := New(cdpStyle, src, quietLog(), nil).Classify(context.Background(), lon, lat)
	if got != (Result{Allowed: false, Type: Undetermined}) {
		t.Fatalf("got=%+v", got)
	}
	if len(src.calls) != 2 {
		t.Fatalf("calls=%d want zoning and fallback", len(src.calls))
	}
}

func TestClassify_CustomLayerIDs(t *testing.T) {
	style := fakeStyle{layers: []tiles.StyleLayer{
		{ID: DefaultCDPLayerID, Source: "ignored", SourceLayer: "old"},
		{ID: "zoning-2025", Source: "zoning_src", SourceLayer: "zones"},
	}}
	src := &fakeSource{bySource: map[string][]*geojson.Feature{
		"zoning_src": {polyFeat(around, geojson.Properties{"name": "High Tech"})},
	}}
	got := New(style, src, quietLog(), []string{"zoning-2025"}).Classify(context.Background(), lon, lat)
	if got != (Result{Allowed: true, Type: "High Tech"}) {
		t.Fatalf("got=%+v", got)
	}
}
