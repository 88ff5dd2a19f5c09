package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/report"
)

func (s *Store) Manifest(ctx context.Context, propertyType string) (model.Manifest, error) {
	var m model.Manifest
	err := s.manifests.FindOne(ctx, bson.M{"type": propertyType}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Manifest{}, fmt.Errorf("manifest %q: %w", propertyType, report.ErrNotFound)
	}
	if err != nil {
		return model.Manifest{}, fmt.Errorf("find manifest %q: %w", propertyType, err)
	}
	return m, nil
}

// UpdateManifest replaces the groups of the manifest stored for
// m.PropertyType. It never creates a manifest.
func (s *Store) UpdateManifest(ctx context.Context, m model.Manifest) error {
	res, err := s.manifests.UpdateOne(ctx,
		bson.M{"type": m.PropertyType},
		bson.M{"$set": bson.M{"groups": m.Groups}},
	)
	if err != nil {
		return fmt.Errorf("update manifest %q: %w", m.PropertyType, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("manifest %q: %w", m.PropertyType, report.ErrNotFound)
	}
	return nil
}
