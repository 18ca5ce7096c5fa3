package model

import "time"

// Snapshot represents an image file written for a high-confidence detection.
type Snapshot struct {
	ID         int64     `json:"id,omitempty" bson:"-"`
	Filename   string    `json:"asset_path" bson:"filename"`
	CameraID   string    `json:"camera_id" bson:"camera_id"`
	ClassName  string    `json:"class_name" bson:"class_name"`
	Confidence float64   `json:"confidence" bson:"confidence"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	FilePath   string    `json:"-" bson:"filepath"`
	FileSize   int64     `json:"filesize" bson:"filesize"`
}
