package tiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/propscope/internal/cache/keys"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
)

const (
	DefaultMinZoom = 0
	DefaultMaxZoom = 22
)

type StyleLayer struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Source      string `json:"source,omitempty"`
	SourceLayer string `json:"source-layer,omitempty"`
}

// LayerZoom is the zoom range a tile layer is published at.
type LayerZoom struct {
	MinZoom int `json:"minzoom"`
	MaxZoom int `json:"maxzoom"`
}

// Clamp caps zoom at the layer's max zoom.
func (lz LayerZoom) Clamp(zoom int) int {
	return min(zoom, lz.MaxZoom)
}

type StyleOptions struct {
	StyleURL string
	TilesURL string
	APIKey   string
	Timeout  time.Duration
	// CacheSize and CacheTTL bound the per-layer zoom metadata cache.
	CacheSize int
	CacheTTL  time.Duration
}

// Style reads the map style document and per-source TileJSON metadata.
type Style struct {
	http  *http.Client
	log   *slog.Logger
	opts  StyleOptions
	zooms *expirable.LRU[string, LayerZoom]
}

func NewStyle(hc *http.Client, log *slog.Logger, opts StyleOptions) *Style {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	opts.TilesURL = strings.TrimRight(opts.TilesURL, "/")
	return &Style{
		http:  hc,
		log:   log,
		opts:  opts,
		zooms: expirable.NewLRU[string, LayerZoom](opts.CacheSize, nil, opts.CacheTTL),
	}
}

// Layers returns the layers declared by the style document.
func (s *Style) Layers(ctx context.Context) ([]StyleLayer, error) {
	var doc struct {
		Layers []StyleLayer `json:"layers"`
	}
	if err := s.getJSON(ctx, withKey(s.opts.StyleURL, s.opts.APIKey), &doc); err != nil {
		return nil, fmt.Errorf("fetch style: %w", err)
	}
	return doc.Layers, nil
}

// LayerZoom looks up the zoom range of sourceLayer within source. Failures
// are logged and answered with the 0..22 defaults.
func (s *Style) LayerZoom(ctx context.Context, source, sourceLayer string) LayerZoom {
	source = ResolveSource(source)
	key := keys.LayerKey(source, sourceLayer)
	if lz, ok := s.zooms.Get(key); ok {
		return lz
	}

	lz, err := s.fetchLayerZoom(ctx, source, sourceLayer)
	if err != nil {
		s.log.WarnContext(ctx, "layer zoom lookup failed, using defaults",
			"source", source, "layer", sourceLayer, "err", err)
		return LayerZoom{MinZoom: DefaultMinZoom, MaxZoom: DefaultMaxZoom}
	}
	s.zooms.Add(key, lz)
	return lz
}

func (s *Style) fetchLayerZoom(ctx context.Context, source, sourceLayer string) (LayerZoom, error) {
	var doc struct {
		VectorLayers []struct {
			ID      string `json:"id"`
			MinZoom *int   `json:"minzoom"`
			MaxZoom *int   `json:"maxzoom"`
		} `json:"vector_layers"`
	}
	u := withKey(fmt.Sprintf("%s/%s/tiles.json", s.opts.TilesURL, url.PathEscape(source)), s.opts.APIKey)
	if err := s.getJSON(ctx, u, &doc); err != nil {
		return LayerZoom{}, err
	}

	lz := LayerZoom{MinZoom: DefaultMinZoom, MaxZoom: DefaultMaxZoom}
	for _, vl := range doc.VectorLayers {
		if vl.ID != sourceLayer {
			continue
		}
		if vl.MinZoom != nil {
			lz.MinZoom = *vl.MinZoom
		}
		// A zero maxzoom means unset.
		if vl.MaxZoom != nil && *vl.MaxZoom > 0 {
			lz.MaxZoom = *vl.MaxZoom
		}
		break
	}
	return lz, nil
}

func (s *Style) getJSON(ctx context.Context, u string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := s.http.Do(req)
	observability.ObserveUpstreamLatency("style", time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// SourceLayerMap indexes style layers by source-layer. When several layers
// share a source-layer the last one wins.
func SourceLayerMap(layers []StyleLayer) map[string]string {
	out := make(map[string]string, len(layers))
	for _, l := range layers {
		if l.SourceLayer == "" || l.Source == "" {
			continue
		}
		out[l.SourceLayer] = l.Source
	}
	return out
}

func withKey(raw, key string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "key=" + url.QueryEscape(key)
}
