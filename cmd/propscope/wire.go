package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/propscope/internal/aggregate/tilemerge"
	"github.com/mohammed-shakir/propscope/internal/cache/redisstore"
	"github.com/mohammed-shakir/propscope/internal/cache/tilecache"
	"github.com/mohammed-shakir/propscope/internal/classify"
	"github.com/mohammed-shakir/propscope/internal/core/config"
	"github.com/mohammed-shakir/propscope/internal/core/health"
	"github.com/mohammed-shakir/propscope/internal/core/httpclient"
	h3mapper "github.com/mohammed-shakir/propscope/internal/mapper/h3"
	"github.com/mohammed-shakir/propscope/internal/notify/kafkanotify"
	"github.com/mohammed-shakir/propscope/internal/report"
	"github.com/mohammed-shakir/propscope/internal/store/mongostore"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

// tileStack is the upstream side shared by every command.
type tileStack struct {
	source *tiles.Client
	style  *tiles.Style
	redis  *redisstore.Client
}

func buildTiles(ctx context.Context, cfg config.Config, log *slog.Logger) (*tileStack, error) {
	hc := httpclient.NewOutbound(cfg.Tiles.FetchTimeout)
	ts := &tileStack{}

	var cache tilecache.Store = tilecache.Nop{}
	if cfg.Tiles.CacheEnabled {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("tile cache: %w", err)
		}
		ts.redis = rc
		cache = tilecache.NewRedisStore(rc, cfg.Tiles.TilesURL, cfg.Tiles.CacheTTL)
	}

	ts.source = tiles.NewClient(hc, log, tiles.Options{
		BaseURL: cfg.Tiles.TilesURL,
		APIKey:  cfg.Tiles.APIKey,
		Timeout: cfg.Tiles.FetchTimeout,
		Retries: cfg.Tiles.FetchRetries,
		Cache:   cache,
	})
	ts.style = tiles.NewStyle(hc, log, tiles.StyleOptions{
		StyleURL:  cfg.Tiles.StyleURL,
		TilesURL:  cfg.Tiles.TilesURL,
		APIKey:    cfg.Tiles.APIKey,
		Timeout:   cfg.Tiles.StyleTimeout,
		CacheSize: cfg.Tiles.LayerCacheSize,
		CacheTTL:  cfg.Tiles.LayerCacheTTL,
	})
	return ts, nil
}

func (ts *tileStack) classifier(cfg config.Config, log *slog.Logger) *classify.Classifier {
	return classify.New(ts.style, ts.source, log, cfg.Tiles.CDPLayerIDs)
}

func (ts *tileStack) Close() {
	if ts.redis != nil {
		_ = ts.redis.Close()
	}
}

// pipeline is everything the report service runs on.
type pipeline struct {
	tiles    *tileStack
	store    *mongostore.Store
	notifier *kafkanotify.Notifier
	service  *report.Service
}

func buildPipeline(ctx context.Context, cfg config.Config, log *slog.Logger) (*pipeline, error) {
	p := &pipeline{}
	ok := false
	defer func() {
		if !ok {
			p.Close(context.WithoutCancel(ctx))
		}
	}()

	ts, err := buildTiles(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	p.tiles = ts

	store, err := mongostore.Connect(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, err
	}
	p.store = store
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	cells, err := h3mapper.New(cfg.H3Res)
	if err != nil {
		return nil, err
	}

	var notifier report.Notifier = report.NopNotifier{}
	if cfg.Events.Enabled {
		kn, err := kafkanotify.New(cfg.Events, log)
		if err != nil {
			return nil, err
		}
		p.notifier = kn
		notifier = kn
	}

	p.service = report.NewService(report.Deps{
		Manifests: store,
		Reports:   store,
		Style:     ts.style,
		Tiles:     tilemerge.New(ts.source, log, cfg.Tiles.FetchWorkers),
		Cells:     cells,
		Notifier:  notifier,
		Log:       log,
	}, report.Options{
		SubgroupConcurrency: cfg.SubgroupConcurrency,
		IsochroneEnabled:    cfg.IsochroneEnabled,
	})
	ok = true
	return p, nil
}

// readiness lists the dependencies /readyz pings.
func (p *pipeline) readiness() map[string]health.Pinger {
	deps := map[string]health.Pinger{"mongo": p.store}
	if p.tiles.redis != nil {
		deps["redis"] = p.tiles.redis
	}
	return deps
}

func (p *pipeline) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if p.notifier != nil {
		_ = p.notifier.Close()
	}
	if p.store != nil {
		_ = p.store.Close(ctx)
	}
	if p.tiles != nil {
		p.tiles.Close()
	}
}
