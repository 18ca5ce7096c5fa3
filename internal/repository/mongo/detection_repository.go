package mongo

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pettracker/internal/model"
	"pettracker/internal/repository"
)

// DetectionRepository implements repository.DetectionRepository on MongoDB.
// Mongo has no integer row ids, so Insert returns a process-local sequence.
type DetectionRepository struct {
	coll *mongo.Collection
	seq  atomic.Int64
}

var _ repository.DetectionRepository = (*DetectionRepository)(nil)

func (r *DetectionRepository) Insert(ctx context.Context, det *model.Detection) (int64, error) {
	doc := *det
	doc.Timestamp = doc.Timestamp.UTC()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}
	return r.seq.Add(1), nil
}

func (r *DetectionRepository) Recent(ctx context.Context, n int) ([]model.Detection, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, recentOptions(n))
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	detections := []model.Detection{}
	if err := cur.All(ctx, &detections); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}
	return detections, nil
}

func (r *DetectionRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return n, nil
}
