// Package report creates reports and generates their per-subgroup feature
// sets in the background.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/propscope/internal/aggregate"
	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/geom"
	"github.com/mohammed-shakir/propscope/internal/logger"
	"github.com/mohammed-shakir/propscope/internal/mapper"
	"github.com/mohammed-shakir/propscope/internal/tiles"
)

// SearchRadiusKm is the radius of the tile set fetched around a report.
const SearchRadiusKm = 5.0

type Request struct {
	Coordinate   model.Coordinate
	Zoom         int
	PropertyType string
	// Isochrones holds the near and far travel-time polygons, in that order.
	Isochrones []orb.Geometry
	ReportID   string
}

type Response struct {
	ReportID   string
	GroupNames []string
	Complete   bool
	Coordinate model.Coordinate
}

type Options struct {
	SubgroupConcurrency int
	IsochroneEnabled    bool
	Now                 func() time.Time
	NewID               func() string
}

type Deps struct {
	Manifests ManifestStore
	Reports   ReportStore
	Style     Style
	Tiles     aggregate.Interface
	Cells     mapper.Interface
	Notifier  Notifier
	Log       *slog.Logger
}

type Service struct {
	manifests ManifestStore
	reports   ReportStore
	style     Style
	tiles     aggregate.Interface
	cells     mapper.Interface
	notifier  Notifier
	log       *slog.Logger
	clipper   *geom.Clipper
	opts      Options

	running sync.WaitGroup
}

func NewService(d Deps, opts Options) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if opts.SubgroupConcurrency <= 0 {
		opts.SubgroupConcurrency = 8
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		manifests: d.Manifests,
		reports:   d.Reports,
		style:     d.Style,
		tiles:     d.Tiles,
		cells:     d.Cells,
		notifier:  d.Notifier,
		log:       d.Log,
		clipper:   geom.NewClipper(d.Log),
		opts:      opts,
	}
}

// CreateOrFetch starts a new report when req carries no id and returns the
// stored state of an existing report otherwise. A new report is returned
// pending; generation continues after the call returns.
func (s *Service) CreateOrFetch(ctx context.Context, req Request) (Response, error) {
	if req.ReportID != "" {
		return s.Status(ctx, req.ReportID)
	}
	if err := req.Coordinate.Validate(); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	m, err := s.manifests.Manifest(ctx, req.PropertyType)
	if err != nil {
		return Response{}, fmt.Errorf("manifest %q: %w", req.PropertyType, err)
	}

	now := s.opts.Now()
	rep := model.Report{
		ID:           s.opts.NewID(),
		PropertyType: req.PropertyType,
		Location:     model.NewGeoPoint(req.Coordinate),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.cells != nil {
		if cell, err := s.cells.CellFor(req.Coordinate); err != nil {
			s.log.WarnContext(ctx, "h3 cell lookup failed", "err", err)
		} else {
			rep.H3Cell = cell
		}
	}
	if err := s.reports.CreateReport(ctx, rep); err != nil {
		return Response{}, fmt.Errorf("create report: %w", err)
	}

	genCtx := logger.WithReportID(context.WithoutCancel(ctx), rep.ID)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.generate(genCtx, rep, req.Zoom, req.Isochrones)
	}()

	s.log.InfoContext(ctx, "report created",
		"report_id", rep.ID, "property_type", rep.PropertyType, "groups", len(m.Groups))
	return Response{
		ReportID:   rep.ID,
		GroupNames: m.GroupNames(),
		Complete:   false,
		Coordinate: req.Coordinate,
	}, nil
}

// Status returns the stored state of a report together with the group names
// of its property type's manifest.
func (s *Service) Status(ctx context.Context, id string) (Response, error) {
	rep, err := s.reports.Report(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("report %q: %w", id, err)
	}
	m, err := s.manifests.Manifest(ctx, rep.PropertyType)
	if err != nil {
		return Response{}, fmt.Errorf("manifest %q: %w", rep.PropertyType, err)
	}
	return Response{
		ReportID:   rep.ID,
		GroupNames: m.GroupNames(),
		Complete:   rep.Complete,
		Coordinate: rep.Location.Coordinate(),
	}, nil
}

// ReportsNear lists reports whose H3 cell is c's cell or one of its direct
// neighbours.
func (s *Service) ReportsNear(ctx context.Context, c model.Coordinate) ([]model.Report, error) {
	if s.cells == nil {
		return nil, errors.New("report index is not configured")
	}
	cells, err := s.cells.Neighborhood(c, 1)
	if err != nil {
		return nil, err
	}
	return s.reports.ReportsInCells(ctx, cells)
}

// RefreshResult describes a manifest refresh.
type RefreshResult struct {
	Manifest  model.Manifest
	Rewritten int
}

// RefreshManifest points every subgroup at the tile source that the style
// declares for its source layer and stores the manifest.
func (s *Service) RefreshManifest(ctx context.Context, propertyType string) (RefreshResult, error) {
	m, err := s.manifests.Manifest(ctx, propertyType)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("manifest %q: %w", propertyType, err)
	}
	layers, err := s.style.Layers(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	sources := tiles.SourceLayerMap(layers)

	n := 0
	for gi := range m.Groups {
		subs := m.Groups[gi].Subgroups
		for si := range subs {
			src, ok := sources[subs[si].SourceLayer]
			if subs[si].SourceLayer == "" || !ok {
				continue
			}
			if subs[si].TileSource != src {
				subs[si].TileSource = src
				n++
			}
		}
	}
	if err := s.manifests.UpdateManifest(ctx, m); err != nil {
		return RefreshResult{}, fmt.Errorf("update manifest %q: %w", propertyType, err)
	}
	s.log.InfoContext(ctx, "manifest refreshed", "property_type", propertyType, "rewritten", n)
	return RefreshResult{Manifest: m, Rewritten: n}, nil
}

// Wait blocks until running generations finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
