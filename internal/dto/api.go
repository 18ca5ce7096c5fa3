package dto

import (
	"time"

	"pettracker/internal/service/eventbus"
)

// CreateDetectionRequest is the body of POST /detections. Omitted
// detection_id and timestamp are filled in by the server.
type CreateDetectionRequest struct {
	DetectionID string     `json:"detection_id"`
	Timestamp   *time.Time `json:"timestamp"`
	ModelID     string     `json:"model_id"`
	CameraID    string     `json:"camera_id" binding:"required"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Confidence  *float64   `json:"confidence" binding:"required"`
	ClassName   string     `json:"class_name" binding:"required"`
	ClassID     int        `json:"class_id"`
}

type CreateDetectionResponse struct {
	ID          int64  `json:"id"`
	DetectionID string `json:"detection_id"`
}

// CameraStatus describes one configured camera.
type CameraStatus struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Streaming     bool          `json:"streaming"`
	FramesDecoded uint64        `json:"frames_decoded"`
	Detecting     bool          `json:"detecting"`
	Detector      DetectorStats `json:"detector"`
}

type DetectorStats struct {
	Cycles     uint64 `json:"cycles"`
	Skipped    uint64 `json:"skipped"`
	Failures   uint64 `json:"failures"`
	Detections uint64 `json:"detections"`
	Dropped    uint64 `json:"dropped"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status           string         `json:"status"`
	Cameras          []CameraStatus `json:"cameras"`
	Bus              eventbus.Stats `json:"bus"`
	LiveClients      int            `json:"live_clients"`
	StoredDetections int64          `json:"stored_detections"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
