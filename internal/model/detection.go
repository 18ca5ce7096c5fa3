package model

import (
	"fmt"
	"time"
)

// Detection is one classifier prediction enriched with camera, model and
// time metadata. It is immutable once published.
type Detection struct {
	ID          int64     `json:"id,omitempty" bson:"-"`
	DetectionID string    `json:"detection_id" bson:"detection_id"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	ModelID     string    `json:"model_id" bson:"model_id"`
	CameraID    string    `json:"camera_id" bson:"camera_id"`
	X           float64   `json:"x" bson:"x"` // bounding-box center
	Y           float64   `json:"y" bson:"y"`
	Width       float64   `json:"width" bson:"width"`
	Height      float64   `json:"height" bson:"height"`
	Confidence  float64   `json:"confidence" bson:"confidence"`
	ClassName   string    `json:"class_name" bson:"class_name"`
	ClassID     int       `json:"class_id" bson:"class_id"`
}

// Validate checks the invariants every stored or published detection holds.
func (d *Detection) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 || d.Confidence != d.Confidence {
		return fmt.Errorf("confidence %v out of range [0,1]", d.Confidence)
	}
	if d.ClassID < 0 {
		return fmt.Errorf("class id %d is negative", d.ClassID)
	}
	if d.CameraID == "" {
		return fmt.Errorf("camera id is empty")
	}
	return nil
}
