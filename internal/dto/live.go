package dto

import (
	"time"

	"pettracker/internal/model"
)

// Live channel status values.
const (
	StatusConnected = "connected"
	StatusActive    = "active"
)

const (
	MessageConnected = "WebSocket connection established"
	MessagePing      = "ping"
)

// LiveMessage is the envelope of every message pushed to live clients.
// Message carries the topic name for bus events.
type LiveMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
}

// Bootstrap is the data of the first message a client receives.
type Bootstrap struct {
	LastDetections []model.Detection `json:"last_10_detections"`
	LastSnapshots  []string          `json:"last_5_snapshots"`
}

// CameraPayload is the data of camera_connected and camera_disconnected.
type CameraPayload struct {
	CameraID string `json:"camera_id"`
}
