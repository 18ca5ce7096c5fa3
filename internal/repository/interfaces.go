package repository

import (
	"context"

	"pettracker/internal/model"
)

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	Insert(ctx context.Context, det *model.Detection) (int64, error)

	// Read operations
	// Recent returns at most n detections, newest first.
	Recent(ctx context.Context, n int) ([]model.Detection, error)
	Count(ctx context.Context) (int64, error)
}

// SnapshotRepository defines the interface for snapshot data operations.
type SnapshotRepository interface {
	// Create operations
	Insert(ctx context.Context, snap *model.Snapshot) (int64, error)
	InsertBatch(ctx context.Context, snapshots []model.Snapshot) (int, error)

	// Read operations
	Recent(ctx context.Context, n int) ([]model.Snapshot, error)
	// GetByFilename returns nil without error when no snapshot matches.
	GetByFilename(ctx context.Context, filename string) (*model.Snapshot, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Detections() DetectionRepository
	Snapshots() SnapshotRepository
	Close() error
}
