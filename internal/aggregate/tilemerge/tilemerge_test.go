package tilemerge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/propscope/internal/tilemath"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func square(x0, y0, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0},
	}}
}

func feat(g orb.Geometry, name string, id any) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties["name"] = name
	if id != nil {
		f.Properties[EntityIDProperty] = id
	}
	return f
}

func names(fs []*geojson.Feature) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Properties.MustString("name", ""))
	}
	return out
}

func TestMerge_UnionsSplitEntity(t *testing.T) {
	left := feat(square(0, 0, 1), "park-left", "gh1")
	right := feat(square(1, 0, 1), "park-right", "gh1")

	out, diag := Merge(context.Background(), quietLog(), [][]*geojson.Feature{{left}, {right}})
	if len(out) != 1 {
		t.Fatalf("len=%d want 1", len(out))
	}
	if got := out[0].Properties["name"]; got != "park-left" {
		t.Fatalf("name=%v want properties of first sighting", got)
	}
	if a := planar.Area(out[0].Geometry); math.Abs(a-2) > 1e-9 {
		t.Fatalf("area=%v want 2", a)
	}
	if diag.Unions != 1 || diag.TotalIn != 2 || diag.TotalOut != 1 {
		t.Fatalf("diag=%+v", diag)
	}
	if a := planar.Area(left.Geometry); math.Abs(a-1) > 1e-9 {
		t.Fatalf("input mutated, area=%v", a)
	}
}

func TestMerge_MultiPolygonUsesFirstPart(t *testing.T) {
	a := feat(orb.MultiPolygon{square(0, 0, 1), square(10, 10, 1)}, "a", "gh")
	b := feat(orb.MultiPolygon{square(1, 0, 1), square(20, 20, 1)}, "b", "gh")

	out, _ := Merge(context.Background(), quietLog(), [][]*geojson.Feature{{a}, {b}})
	if len(out) != 1 {
		t.Fatalf("len=%d want 1", len(out))
	}
	if area := planar.Area(out[0].Geometry); math.Abs(area-2) > 1e-9 {
		t.Fatalf("area=%v want 2 (first parts only)", area)
	}
}

func TestMerge_OrderAndPassThrough(t *testing.T) {
	tile0 := []*geojson.Feature{
		feat(orb.Point{0, 0}, "poi-1", "gh-point"),
		feat(square(0, 0, 1), "lot-A", "A"),
		feat(square(5, 5, 1), "no-id", nil),
	}
	tile1 := []*geojson.Feature{
		feat(square(2, 2, 1), "lot-B", "B"),
		feat(square(1, 0, 1), "lot-A-2", "A"),
		feat(orb.LineString{{0, 0}, {1, 1}}, "road", nil),
	}

	out, _ := Merge(context.Background(), quietLog(), [][]*geojson.Feature{tile0, tile1})
	want := []string{"lot-A", "lot-B", "poi-1", "no-id", "road"}
	if got := names(out); !slices.Equal(got, want) {
		t.Fatalf("order=%v want %v", got, want)
	}
}

func TestMerge_IdempotentForIdenticalPieces(t *testing.T) {
	a := feat(square(0, 0, 1), "a", "gh")
	b := feat(square(0, 0, 1), "a-again", "gh")

	out, _ := Merge(context.Background(), quietLog(), [][]*geojson.Feature{{a}, {b}})
	if len(out) != 1 {
		t.Fatalf("len=%d want 1", len(out))
	}
	if area := planar.Area(out[0].Geometry); math.Abs(area-1) > 1e-9 {
		t.Fatalf("area=%v want 1", area)
	}
}

func TestMerge_FalsyIDsArePassThrough(t *testing.T) {
	a := feat(square(0, 0, 1), "a", "")
	b := feat(square(1, 0, 1), "b", float64(0))

	out, diag := Merge(context.Background(), quietLog(), [][]*geojson.Feature{{a}, {b}})
	if len(out) != 2 || diag.Unions != 0 {
		t.Fatalf("len=%d unions=%d want 2 and 0", len(out), diag.Unions)
	}
}

func TestEntityKey(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"", ""},
		{"12", "s:12"},
		{float64(12), "n:12"},
		{int64(12), "n:12"},
		{uint64(12), "n:12"},
		{int64(0), ""},
		{true, "b:true"},
		{false, ""},
		{[]any{"x"}, ""},
	}
	for _, tt := range tests {
		if got := entityKey(tt.in); got != tt.want {
			t.Fatalf("entityKey(%#v)=%q want %q", tt.in, got, tt.want)
		}
	}
}

type fakeSource struct {
	mu     sync.Mutex
	byTile map[tilemath.Tile][]*geojson.Feature
	fail   map[tilemath.Tile]bool
	seen   []tilemath.Tile
	layers []string
}

func (s *fakeSource) Fetch(_ context.Context, source string, t tilemath.Tile, layers ...string) ([]*geojson.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, t)
	s.layers = append(s.layers, layers...)
	if s.fail[t] {
		return nil, errors.New("upstream down")
	}
	return s.byTile[t], nil
}

func TestFetcher_FailingTileIsIsolated(t *testing.T) {
	t0 := tilemath.Tile{X: 1, Y: 1, Z: 14}
	t1 := tilemath.Tile{X: 1, Y: 2, Z: 14}
	t2 := tilemath.Tile{X: 2, Y: 1, Z: 14}

	src := &fakeSource{
		byTile: map[tilemath.Tile][]*geojson.Feature{
			t0: {feat(square(0, 0, 1), "piece-1", "E")},
			t2: {feat(square(1, 0, 1), "piece-2", "E"), feat(orb.Point{9, 9}, "poi", nil)},
		},
		fail: map[tilemath.Tile]bool{t1: true},
	}

	f := New(src, quietLog(), 2)
	out := f.FetchTileData(context.Background(), []tilemath.Tile{t0, t1, t2}, "v3", "landuse", 14)

	if got := names(out); !slices.Equal(got, []string{"piece-1", "poi"}) {
		t.Fatalf("names=%v", got)
	}
	if area := planar.Area(out[0].Geometry); math.Abs(area-2) > 1e-9 {
		t.Fatalf("area=%v want 2", area)
	}
	if len(src.seen) != 3 {
		t.Fatalf("fetched %d tiles want 3", len(src.seen))
	}
	for _, l := range src.layers {
		if l != "landuse" {
			t.Fatalf("layer=%q want landuse", l)
		}
	}
}

func TestFetcher_DeterministicAcrossRuns(t *testing.T) {
	var ts []tilemath.Tile
	byTile := map[tilemath.Tile][]*geojson.Feature{}
	for i := range 12 {
		tile := tilemath.Tile{X: i, Y: 0, Z: 15}
		ts = append(ts, tile)
		byTile[tile] = []*geojson.Feature{
			feat(square(float64(i), 0, 1), "strip", "S"),
			feat(orb.Point{float64(i), 5}, "p"+string(rune('a'+i)), nil),
		}
	}
	src := &fakeSource{byTile: byTile}
	f := New(src, quietLog(), 4)

	first := names(f.FetchTileData(context.Background(), ts, "v3", "x", 15))
	for range 5 {
		if got := names(f.FetchTileData(context.Background(), ts, "v3", "x", 15)); !slices.Equal(got, first) {
			t.Fatalf("order changed: %v vs %v", got, first)
		}
	}
	if len(first) != 13 || first[0] != "strip" {
		t.Fatalf("names=%v", first)
	}
}

func TestFetcher_UsesRequestedZoom(t *testing.T) {
	src := &fakeSource{}
	f := New(src, quietLog(), 1)
	_ = f.FetchTileData(context.Background(), []tilemath.Tile{{X: 3, Y: 4, Z: 99}}, "v3", "poi", 12)
	if len(src.seen) != 1 || src.seen[0] != (tilemath.Tile{X: 3, Y: 4, Z: 12}) {
		t.Fatalf("seen=%v", src.seen)
	}
}

func TestFetcher_EmptyInput(t *testing.T) {
	f := New(&fakeSource{}, quietLog(), 0)
	if out := f.FetchTileData(context.Background(), nil, "v3", "poi", 14); out != nil {
		t.Fatalf("out=%v want nil", out)
	}
}
