package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"pettracker/internal/model"
	"pettracker/internal/repository"
)

const insertDetection = `
	INSERT INTO detections (detection_id, timestamp, model_id, camera_id, x, y, width, height, confidence, class_name, class_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

var _ repository.DetectionRepository = (*DetectionRepository)(nil)

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

func detectionArgs(det *model.Detection) []any {
	return []any{
		det.DetectionID, det.Timestamp.UTC(), det.ModelID, det.CameraID,
		det.X, det.Y, det.Width, det.Height, det.Confidence, det.ClassName, det.ClassID,
	}
}

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(ctx context.Context, det *model.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, insertDetection, detectionArgs(det)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return result.LastInsertId()
}

// Recent returns the n most recent detections, newest first.
func (r *DetectionRepository) Recent(ctx context.Context, n int) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, detection_id, timestamp, model_id, camera_id, x, y, width, height, confidence, class_name, class_id
		FROM detections ORDER BY timestamp DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]model.Detection, error) {
	detections := []model.Detection{}
	for rows.Next() {
		var d model.Detection
		if err := rows.Scan(&d.ID, &d.DetectionID, &d.Timestamp, &d.ModelID, &d.CameraID,
			&d.X, &d.Y, &d.Width, &d.Height, &d.Confidence, &d.ClassName, &d.ClassID); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

func (r *DetectionRepository) Count(ctx context.Context) (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int64
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}
