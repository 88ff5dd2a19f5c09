// Package mongostore persists manifests and reports in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mohammed-shakir/propscope/internal/core/config"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
)

type Store struct {
	client    *mongo.Client
	manifests *mongo.Collection
	reports   *mongo.Collection
	features  *mongo.Collection
	metadata  *mongo.Collection
	log       *slog.Logger
}

// Collections names the collections a Store works on.
type Collections struct {
	Manifests *mongo.Collection
	Reports   *mongo.Collection
	Features  *mongo.Collection
	Metadata  *mongo.Collection
}

func New(c Collections, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		manifests: c.Manifests,
		reports:   c.Reports,
		features:  c.Features,
		metadata:  c.Metadata,
		log:       log,
	}
}

// Connect dials cfg.URI, pings the deployment and returns a Store over the
// configured databases.
func Connect(ctx context.Context, cfg config.MongoCfg, log *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	manifestDB := cli.Database(cfg.ManifestDB)
	reportDB := cli.Database(cfg.ReportDB)
	s := New(Collections{
		Manifests: manifestDB.Collection(cfg.ManifestCollection),
		Reports:   reportDB.Collection(cfg.ReportCollection),
		Features:  reportDB.Collection(cfg.FeaturesCollection),
		Metadata:  reportDB.Collection(cfg.MetadataCollection),
	}, log)
	s.client = cli

	if err := s.Ping(cctx); err != nil {
		_ = cli.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("mongo client not connected")
	}
	start := time.Now()
	err := s.client.Ping(ctx, nil)
	observability.ObserveUpstreamLatency("mongo", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the store relies on. Creating an index
// that already exists is a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	docKey := mongo.IndexModel{
		Keys: bson.D{
			{Key: "propscope_id", Value: 1},
			{Key: "group_name", Value: 1},
			{Key: "subgroup_name", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.reports, []mongo.IndexModel{
			{Keys: bson.D{{Key: "propscope_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "h3_cell", Value: 1}}},
		}},
		{s.features, []mongo.IndexModel{docKey}},
		{s.metadata, []mongo.IndexModel{docKey}},
		{s.manifests, []mongo.IndexModel{
			{Keys: bson.D{{Key: "type", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
	}
	for _, sp := range specs {
		if _, err := sp.coll.Indexes().CreateMany(ctx, sp.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", sp.coll.Name(), err)
		}
	}
	return nil
}
