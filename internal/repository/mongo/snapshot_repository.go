package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pettracker/internal/model"
	"pettracker/internal/repository"
)

// SnapshotRepository implements repository.SnapshotRepository on MongoDB.
type SnapshotRepository struct {
	coll *mongo.Collection
	seq  atomic.Int64
}

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

func (r *SnapshotRepository) Insert(ctx context.Context, snap *model.Snapshot) (int64, error) {
	doc := *snap
	doc.Timestamp = doc.Timestamp.UTC()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return r.seq.Add(1), nil
}

// InsertBatch skips snapshots whose filename is already stored.
func (r *SnapshotRepository) InsertBatch(ctx context.Context, snapshots []model.Snapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}
	docs := make([]any, len(snapshots))
	for i, s := range snapshots {
		s.Timestamp = s.Timestamp.UTC()
		docs[i] = s
	}

	inserted := len(docs)
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		dups, ok := duplicates(err)
		if !ok {
			return 0, fmt.Errorf("failed to insert snapshots: %w", err)
		}
		inserted -= dups
	}
	r.seq.Add(int64(inserted))
	return inserted, nil
}

// duplicates reports how many writes failed on the unique filename index,
// and false when any failure had another cause.
func duplicates(err error) (int, bool) {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return 0, false
	}
	for _, we := range bwe.WriteErrors {
		if !mongo.IsDuplicateKeyError(we) {
			return 0, false
		}
	}
	return len(bwe.WriteErrors), true
}

func (r *SnapshotRepository) Recent(ctx context.Context, n int) ([]model.Snapshot, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, recentOptions(n))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	snapshots := []model.Snapshot{}
	if err := cur.All(ctx, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *SnapshotRepository) GetByFilename(ctx context.Context, filename string) (*model.Snapshot, error) {
	var s model.Snapshot
	err := r.coll.FindOne(ctx, bson.D{{Key: "filename", Value: filename}}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}
