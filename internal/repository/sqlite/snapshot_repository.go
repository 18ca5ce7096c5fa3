package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pettracker/internal/model"
	"pettracker/internal/repository"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(ctx context.Context, snap *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO snapshots (filename, camera_id, class_name, confidence, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.Filename, snap.CameraID, snap.ClassName, snap.Confidence, snap.Timestamp.UTC(), snap.FilePath, snap.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch inserts snapshots in one transaction, skipping filenames that
// are already recorded. It returns how many rows were added.
func (r *SnapshotRepository) InsertBatch(ctx context.Context, snapshots []model.Snapshot) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO snapshots (filename, camera_id, class_name, confidence, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range snapshots {
		res, err := stmt.ExecContext(ctx, s.Filename, s.CameraID, s.ClassName, s.Confidence, s.Timestamp.UTC(), s.FilePath, s.FileSize)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot %s: %w", s.Filename, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return inserted, nil
}

// Recent returns the n most recent snapshots, newest first.
func (r *SnapshotRepository) Recent(ctx context.Context, n int) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, filename, camera_id, class_name, confidence, timestamp, filepath, filesize
		FROM snapshots ORDER BY timestamp DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []model.Snapshot{}
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.Filename, &s.CameraID, &s.ClassName, &s.Confidence, &s.Timestamp, &s.FilePath, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetByFilename retrieves a snapshot by its filename.
func (r *SnapshotRepository) GetByFilename(ctx context.Context, filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s model.Snapshot
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, filename, camera_id, class_name, confidence, timestamp, filepath, filesize
		FROM snapshots WHERE filename = ?
	`, filename).Scan(&s.ID, &s.Filename, &s.CameraID, &s.ClassName, &s.Confidence, &s.Timestamp, &s.FilePath, &s.FileSize)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}
