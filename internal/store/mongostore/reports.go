package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/core/observability"
	"github.com/mohammed-shakir/propscope/internal/report"
)

func (s *Store) CreateReport(ctx context.Context, r model.Report) error {
	if _, err := s.reports.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert report %q: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Report(ctx context.Context, id string) (model.Report, error) {
	var r model.Report
	err := s.reports.FindOne(ctx, bson.M{"propscope_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Report{}, fmt.Errorf("report %q: %w", id, report.ErrNotFound)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("find report %q: %w", id, err)
	}
	return r, nil
}

func (s *Store) MarkComplete(ctx context.Context, id string) error {
	res, err := s.reports.UpdateOne(ctx,
		bson.M{"propscope_id": id},
		bson.M{"$set": bson.M{
			"propscope_instance_status": true,
			"updatedAt":                 time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("complete report %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("report %q: %w", id, report.ErrNotFound)
	}
	return nil
}

// ReportsInCells returns the reports indexed under any of cells.
func (s *Store) ReportsInCells(ctx context.Context, cells []string) ([]model.Report, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	cur, err := s.reports.Find(ctx, bson.M{"h3_cell": bson.M{"$in": cells}})
	if err != nil {
		return nil, fmt.Errorf("find reports by cell: %w", err)
	}
	var out []model.Report
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reports by cell: %w", err)
	}
	return out, nil
}

func (s *Store) InsertFeatureSets(ctx context.Context, docs []model.FeatureSetDocument) error {
	batch := make([]any, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, d)
	}
	return s.insertUnordered(ctx, s.features, "feature_set", batch)
}

func (s *Store) InsertMetadata(ctx context.Context, docs []model.MetadataDocument) error {
	batch := make([]any, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, d)
	}
	return s.insertUnordered(ctx, s.metadata, "metadata", batch)
}

// insertUnordered writes every document it can. Only the rejected documents
// are reported back.
func (s *Store) insertUnordered(ctx context.Context, coll *mongo.Collection, kind string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()
	_, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	observability.ObserveUpstreamLatency("mongo", time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		observability.AddStoreWriteFailures(kind, len(bwe.WriteErrors))
		first := bwe.WriteErrors[0]
		return fmt.Errorf("insert %s: %d of %d documents rejected, first at %d: %s",
			kind, len(bwe.WriteErrors), len(docs), first.Index, first.Message)
	}
	observability.AddStoreWriteFailures(kind, len(docs))
	return fmt.Errorf("insert %s: %w", kind, err)
}
