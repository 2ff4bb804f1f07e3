package criteria

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/mesikahq/niv-onboarding/internal/eligibility"
)

const collectionName = "qualification_criteria"

// Store serves the read-only qualification rule table. The domain never
// writes through it; Seed is an operational bootstrap only.
type Store interface {
	GetQualificationCriteria(ctx context.Context) ([]eligibility.QualificationCriterion, error)
	Seed(ctx context.Context) error
}

type mongoStore struct {
	collection *mongo.Collection
	log        *zap.Logger
}

func NewMongoStore(db *mongo.Database, logger *zap.Logger) Store {
	return &mongoStore{
		collection: db.Collection(collectionName),
		log:        logger,
	}
}

// GetQualificationCriteria loads the active rule table. An empty collection
// falls back to the canonical built-in table so a fresh deployment can
// classify before reference data has been loaded.
func (s *mongoStore) GetQualificationCriteria(ctx context.Context) ([]eligibility.QualificationCriterion, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query qualification criteria: %w", err)
	}
	defer cursor.Close(ctx)

	var criteria []eligibility.QualificationCriterion
	if err := cursor.All(ctx, &criteria); err != nil {
		return nil, fmt.Errorf("failed to decode qualification criteria: %w", err)
	}

	if len(criteria) == 0 {
		s.log.Warn("qualification criteria collection is empty, using built-in defaults")
		return eligibility.DefaultCriteria(), nil
	}
	return criteria, nil
}

// Seed inserts the canonical rule table when the collection is empty.
func (s *mongoStore) Seed(ctx context.Context) error {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to count qualification criteria: %w", err)
	}
	if count > 0 {
		return nil
	}

	defaults := eligibility.DefaultCriteria()
	docs := make([]interface{}, len(defaults))
	for i, criterion := range defaults {
		docs[i] = criterion
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to seed qualification criteria: %w", err)
	}

	s.log.Info("seeded qualification criteria", zap.Int("count", len(docs)))
	return nil
}

// StaticStore serves a fixed in-memory rule table. Used in tests and as the
// store when no MongoDB is configured.
type StaticStore struct {
	Criteria []eligibility.QualificationCriterion
}

func (s *StaticStore) GetQualificationCriteria(ctx context.Context) ([]eligibility.QualificationCriterion, error) {
	if len(s.Criteria) == 0 {
		return eligibility.DefaultCriteria(), nil
	}
	return s.Criteria, nil
}

func (s *StaticStore) Seed(ctx context.Context) error {
	return nil
}
