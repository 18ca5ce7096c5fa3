package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pettracker/internal/repository"
)

const (
	detectionsCollection = "detections"
	snapshotsCollection  = "snapshots"
	connectTimeout       = 10 * time.Second
)

// Store keeps detections and snapshots in two collections of one database.
type Store struct {
	client     *mongo.Client
	detections *DetectionRepository
	snapshots  *SnapshotRepository
}

var _ repository.Store = (*Store)(nil)

// Open connects to uri, verifies the server is reachable and creates the
// timestamp indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		detections: &DetectionRepository{coll: db.Collection(detectionsCollection)},
		snapshots:  &SnapshotRepository{coll: db.Collection(snapshotsCollection)},
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	byTime := mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}}
	if _, err := s.detections.coll.Indexes().CreateOne(ctx, byTime); err != nil {
		return fmt.Errorf("failed to create detection index: %w", err)
	}
	if _, err := s.snapshots.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		byTime,
		{Keys: bson.D{{Key: "filename", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create snapshot indexes: %w", err)
	}
	return nil
}

func (s *Store) Detections() repository.DetectionRepository { return s.detections }
func (s *Store) Snapshots() repository.SnapshotRepository   { return s.snapshots }

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes both collections. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.detections.coll.Drop(ctx); err != nil {
		return err
	}
	return s.snapshots.coll.Drop(ctx)
}

// recentOptions sorts newest first; _id breaks ties in insertion order
// because ObjectIDs grow monotonically within one process.
func recentOptions(n int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(n))
}
