package h3mapper

import (
	"slices"
	"sort"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/propscope/internal/core/model"
)

var bengaluru = model.Coordinate{Lat: 12.9716, Lon: 77.5946}

func TestNew_RejectsBadResolution(t *testing.T) {
	for _, res := range []int{-1, 16} {
		if _, err := New(res); err == nil {
			t.Fatalf("res=%d expected error", res)
		}
	}
}

func TestCellFor_ResolutionAndStability(t *testing.T) {
	m, err := New(9)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := m.CellFor(bengaluru)
	if err != nil {
		t.Fatalf("CellFor: %v", err)
	}
	b, _ := m.CellFor(bengaluru)
	if a != b || a == "" {
		t.Fatalf("cells %q vs %q", a, b)
	}

	var c h3.Cell
	if err := c.UnmarshalText([]byte(a)); err != nil {
		t.Fatalf("parse cell: %v", err)
	}
	if !c.IsValid() || c.Resolution() != 9 {
		t.Fatalf("cell %q valid=%v res=%d", a, c.IsValid(), c.Resolution())
	}
}

func TestCellFor_InvalidCoordinate(t *testing.T) {
	m, _ := New(9)
	if _, err := m.CellFor(model.Coordinate{Lat: 91, Lon: 0}); err == nil {
		t.Fatalf("expected error for lat 91")
	}
}

func TestNeighborhood_RingOne(t *testing.T) {
	m, _ := New(9)
	center, _ := m.CellFor(bengaluru)

	cells, err := m.Neighborhood(bengaluru, 1)
	if err != nil {
		t.Fatalf("Neighborhood: %v", err)
	}
	if len(cells) != 7 {
		t.Fatalf("cells=%d want 7", len(cells))
	}
	if !sort.StringsAreSorted(cells) {
		t.Fatalf("cells must be sorted")
	}
	if !slices.Contains(cells, center) {
		t.Fatalf("neighbourhood must contain the center cell")
	}

	only, err := m.Neighborhood(bengaluru, 0)
	if err != nil || len(only) != 1 || only[0] != center {
		t.Fatalf("k=0 cells=%v err=%v", only, err)
	}
	if _, err := m.Neighborhood(bengaluru, -1); err == nil {
		t.Fatalf("expected error for negative k")
	}
}
