// Package tilemerge fetches vector tiles concurrently and stitches entities
// that were split across tile boundaries back together.
package tilemerge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/aggregate"
	"github.com/mohammed-shakir/propscope/internal/tilemath"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

const DefaultWorkers = 8

type Fetcher struct {
	src     tiles.Source
	log     *slog.Logger
	workers int
}

var _ aggregate.Interface = (*Fetcher)(nil)

func New(src tiles.Source, log *slog.Logger, workers int) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Fetcher{src: src, log: log, workers: workers}
}

type tileResult struct {
	idx      int
	features []*geojson.Feature
}

// FetchTileData fetches every tile at zoom and merges the features of
// sourceLayer. Tile order is the order of tiles; only tile x/y are used.
func (f *Fetcher) FetchTileData(ctx context.Context, ts []tilemath.Tile, tileSource, sourceLayer string, zoom int) []*geojson.Feature {
	if len(ts) == 0 {
		return nil
	}
	start := time.Now()

	jobs := make(chan int, len(ts))
	results := make(chan tileResult, len(ts))

	workerN := min(f.workers, len(ts))
	var wg sync.WaitGroup
	wg.Add(workerN)
	for range workerN {
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				t := tilemath.Tile{X: ts[i].X, Y: ts[i].Y, Z: zoom}
				feats, err := f.src.Fetch(ctx, tileSource, t, sourceLayer)
				if err != nil {
					f.log.WarnContext(ctx, "tile fetch failed",
						"source", tileSource, "layer", sourceLayer,
						"z", t.Z, "x", t.X, "y", t.Y, "err", err)
					feats = nil
				}
				results <- tileResult{idx: i, features: feats}
			}
		}()
	}

	for i := range ts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(results)

	perTile := make([][]*geojson.Feature, len(ts))
	for r := range results {
		perTile[r.idx] = r.features
	}

	out, diag := Merge(ctx, f.log, perTile)
	f.log.DebugContext(ctx, "tiles merged",
		"source", tileSource, "layer", sourceLayer, "zoom", zoom,
		"tiles", len(ts), "in", diag.TotalIn, "out", diag.TotalOut,
		"unions", diag.Unions, "union_failures", diag.UnionFailures,
		"dur", time.Since(start).String())
	return out
}
