// Package tiles talks to the remote vector tile service: tile bodies,
// style layers and per-layer zoom metadata.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/propscope/internal/cache/tilecache"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
	"github.com/mohammed-shakir/propscope/internal/tilemath"
)

const (
	// maxTileBytes bounds a single tile body.
	maxTileBytes = 16 << 20
	// maxRetryElapsed caps the time spent retrying one tile.
	maxRetryElapsed = 30 * time.Second
)

// aliases maps manifest source names to tile service ids.
var aliases = map[string]string{
	"maptiler_planet": "v3",
}

// ResolveSource applies the tile source aliases.
func ResolveSource(source string) string {
	if id, ok := aliases[source]; ok {
		return id
	}
	return source
}

// Source fetches and decodes one tile. Implementations return an error for
// transport or decode failures; callers decide whether that is fatal.
type Source interface {
	Fetch(ctx context.Context, source string, t tilemath.Tile, layers ...string) ([]*geojson.Feature, error)
}

type Options struct {
	BaseURL string
	APIKey  string
	// Timeout applies to each attempt.
	Timeout time.Duration
	Retries int
	Cache   tilecache.Store
}

// Client is the HTTP Source.
type Client struct {
	http    *http.Client
	log     *slog.Logger
	baseURL string
	apiKey  string
	timeout time.Duration
	retries int
	cache   tilecache.Store
	group   singleflight.Group
}

func NewClient(hc *http.Client, log *slog.Logger, opts Options) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = tilecache.Nop{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		http:    hc,
		log:     log,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		retries: max(opts.Retries, 0),
		cache:   opts.Cache,
	}
}

// TileURL is {base}/{source}/{z}/{x}/{y}.pbf?key={apiKey}.
func (c *Client) TileURL(source string, t tilemath.Tile) string {
	return fmt.Sprintf("%s/%s/%d/%d/%d.pbf?key=%s",
		c.baseURL, url.PathEscape(source), t.Z, t.X, t.Y, url.QueryEscape(c.apiKey))
}

func (c *Client) Fetch(ctx context.Context, source string, t tilemath.Tile, layers ...string) ([]*geojson.Feature, error) {
	source = ResolveSource(source)
	body, err := c.body(ctx, source, t)
	if err != nil {
		observability.IncTileFetch("error")
		return nil, err
	}
	feats, err := Decode(body, t, layers...)
	if err != nil {
		observability.IncTileFetch("decode_error")
		return nil, err
	}
	return feats, nil
}

// body returns the raw tile, consulting the cache first. Concurrent requests
// for the same tile share one upstream call.
func (c *Client) body(ctx context.Context, source string, t tilemath.Tile) ([]byte, error) {
	if b, ok, err := c.cache.Get(ctx, source, t.Z, t.X, t.Y); err != nil {
		c.log.WarnContext(ctx, "tile cache read failed", "source", source, "z", t.Z, "x", t.X, "y", t.Y, "err", err)
	} else if ok {
		observability.IncTileFetch("cached")
		return b, nil
	}

	key := fmt.Sprintf("%s/%d/%d/%d", source, t.Z, t.X, t.Y)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchWithRetry(ctx, source, t)
	})
	if err != nil {
		return nil, err
	}
	b := v.([]byte)
	observability.IncTileFetch("ok")

	if err := c.cache.Put(ctx, source, t.Z, t.X, t.Y, b); err != nil {
		c.log.WarnContext(ctx, "tile cache write failed", "source", source, "err", err)
	}
	return b, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, source string, t tilemath.Tile) ([]byte, error) {
	var body []byte
	op := func() error {
		b, err := c.fetchOnce(ctx, source, t)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	// WithMaxRetries treats 0 as unlimited, so a single attempt bypasses it.
	if c.retries == 0 {
		if err := op(); err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return nil, perm.Err
			}
			return nil, err
		}
		return body, nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = maxRetryElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// StatusError is a non-2xx response from the tile service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tile service status %d: %s", e.Code, e.Body)
}

func (c *Client) fetchOnce(ctx context.Context, source string, t tilemath.Tile) ([]byte, error) {
	if t.X < 0 || t.Y < 0 {
		return nil, backoff.Permanent(fmt.Errorf("tile %d/%d/%d out of range", t.Z, t.X, t.Y))
	}
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(opCtx, http.MethodGet, c.TileURL(source, t), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build tile request: %w", err))
	}
	req.Header.Set("Accept-Encoding", "gzip")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("tiles", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("tile request %s/%d/%d/%d: %w", source, t.Z, t.X, t.Y, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		// empty tile
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("read tile body: %w", err)
	}
	return body, nil
}
