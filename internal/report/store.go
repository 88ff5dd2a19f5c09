package report

import (
	"context"
	"errors"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

// ErrNotFound is returned, wrapped, when a manifest or report does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest marks input rejected before any work starts.
var ErrInvalidRequest = errors.New("invalid request")

type ManifestStore interface {
	Manifest(ctx context.Context, propertyType string) (model.Manifest, error)
	// UpdateManifest replaces the manifest stored for m.PropertyType.
	UpdateManifest(ctx context.Context, m model.Manifest) error
}

// ReportStore persists reports and their documents. Batch inserts are
// unordered: a failing document does not stop the others, and the returned
// error describes only the failures.
type ReportStore interface {
	CreateReport(ctx context.Context, r model.Report) error
	Report(ctx context.Context, id string) (model.Report, error)
	InsertFeatureSets(ctx context.Context, docs []model.FeatureSetDocument) error
	InsertMetadata(ctx context.Context, docs []model.MetadataDocument) error
	MarkComplete(ctx context.Context, id string) error
	ReportsInCells(ctx context.Context, cells []string) ([]model.Report, error)
}

// Style is the style metadata the pipeline needs.
type Style interface {
	Layers(ctx context.Context) ([]tiles.StyleLayer, error)
	LayerZoom(ctx context.Context, source, sourceLayer string) tiles.LayerZoom
}
