// Package aggregate defines how tile features are gathered into one
// collection across tile boundaries.
package aggregate

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/tilemath"
)

// Interface fetches the given tiles of one source layer and merges them.
// Failing tiles contribute no features; the call itself never fails.
type Interface interface {
	FetchTileData(ctx context.Context, tiles []tilemath.Tile, tileSource, sourceLayer string, zoom int) []*geojson.Feature
}
