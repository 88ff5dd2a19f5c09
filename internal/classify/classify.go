// Package classify decides the land-use type of a coordinate from zoning
// and land-use map layers.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/propscope/internal/geom"
	"github.com/mohammed-shakir/propscope/internal/tilemath"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

const (
	DefaultCDPLayerID = "Proposed-CDP-Map"

	cdpZoom     = 16
	landUseZoom = 15
	landUseSrc  = "v3"

	Undetermined = "undetermined"
	Building     = "building"
)

var (
	cdpAllowed = []string{
		"Residential Main",
		"Residential Mixed",
		"Agricultural Land",
		"Commercial Business",
		"Commercial Center",
		"High Tech",
		"Industrial",
	}
	landUseAllowed = []string{"residential", "industrial", "commercial", "neighbourhood"}

	errNoCDPLayers = errors.New("style declares no zoning layers")
)

// Result is the classification of one coordinate.
type Result struct {
	Allowed bool   `json:"allowed"`
	Type    string `json:"type"`
}

type StyleLayers interface {
	Layers(ctx context.Context) ([]tiles.StyleLayer, error)
}

type Classifier struct {
	style    StyleLayers
	src      tiles.Source
	log      *slog.Logger
	layerIDs []string
}

// New returns a Classifier reading zoning layers whose style id is in
// layerIDs (DefaultCDPLayerID when empty).
func New(style StyleLayers, src tiles.Source, log *slog.Logger, layerIDs []string) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	if len(layerIDs) == 0 {
		layerIDs = []string{DefaultCDPLayerID}
	}
	return &Classifier{style: style, src: src, log: log, layerIDs: layerIDs}
}

// Classify checks the zoning layer first and falls back to the base map
// land-use and building layers. A stage that fails counts as no match.
func (c *Classifier) Classify(ctx context.Context, lon, lat float64) Result {
	pt := orb.Point{lon, lat}

	if res, ok, err := c.fromZoning(ctx, pt); err != nil {
		c.log.WarnContext(ctx, "zoning lookup failed", "lon", lon, "lat", lat, "err", err)
	} else if ok {
		return res
	}
	c.log.DebugContext(ctx, "no zoning match, trying land use", "lon", lon, "lat", lat)

	if res, ok, err := c.fromLandUse(ctx, pt); err != nil {
		c.log.WarnContext(ctx, "land use lookup failed", "lon", lon, "lat", lat, "err", err)
	} else if ok {
		return res
	}
	return Result{Allowed: false, Type: Undetermined}
}

func (c *Classifier) fromZoning(ctx context.Context, pt orb.Point) (Result, bool, error) {
	all, err := c.style.Layers(ctx)
	if err != nil {
		return Result{}, false, err
	}
	var (
		layers []string
		source string
	)
	for _, l := range all {
		if !slices.Contains(c.layerIDs, l.ID) {
			continue
		}
		if source == "" {
			source = l.Source
		}
		if l.SourceLayer != "" && !slices.Contains(layers, l.SourceLayer) {
			layers = append(layers, l.SourceLayer)
		}
	}
	if source == "" || len(layers) == 0 {
		return Result{}, false, errNoCDPLayers
	}

	feats, err := c.fetch(ctx, source, pt, cdpZoom, layers...)
	if err != nil {
		return Result{}, false, err
	}
	res, ok := firstMatch(feats, pt, zoningType)
	return res, ok, nil
}

func (c *Classifier) fromLandUse(ctx context.Context, pt orb.Point) (Result, bool, error) {
	feats, err := c.fetch(ctx, landUseSrc, pt, landUseZoom, "landuse", "building")
	if err != nil {
		return Result{}, false, err
	}
	res, ok := firstMatch(feats, pt, landUseType)
	return res, ok, nil
}

func (c *Classifier) fetch(ctx context.Context, source string, pt orb.Point, zoom int, layers ...string) ([]*geojson.Feature, error) {
	t := tilemath.LonLatToTile(pt.Lon(), pt.Lat(), zoom)
	return c.src.Fetch(ctx, source, t, layers...)
}

// firstMatch walks polygonal features containing pt in order and returns the
// first one decide has an opinion on.
func firstMatch(feats []*geojson.Feature, pt orb.Point, decide func(geojson.Properties) (Result, bool)) (Result, bool) {
	for _, f := range feats {
		if f == nil || !geom.Contains(f.Geometry, pt) {
			continue
		}
		if res, ok := decide(f.Properties); ok {
			return res, true
		}
	}
	return Result{}, false
}

func zoningType(p geojson.Properties) (Result, bool) {
	name, ok := p["name"].(string)
	if !ok || name == "" {
		return Result{}, false
	}
	return Result{Allowed: slices.Contains(cdpAllowed, name), Type: name}, true
}

func landUseType(p geojson.Properties) (Result, bool) {
	switch p[tiles.LayerProperty] {
	case "landuse":
		class, ok := p["class"].(string)
		if !ok || class == "" {
			return Result{}, false
		}
		return Result{Allowed: slices.Contains(landUseAllowed, class), Type: class}, true
	case "building":
		return Result{Allowed: true, Type: Building}, true
	}
	return Result{}, false
}
