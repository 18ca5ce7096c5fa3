package ai

import (
	"context"
	"fmt"

	"pettracker/internal/config"
	"pettracker/internal/logger"
	"pettracker/internal/model"
)

// Prediction is one labelled box as returned by the inference service.
// X and Y are the box center in frame pixels.
type Prediction struct {
	DetectionID string  `json:"detection_id,omitempty"`
	Confidence  float64 `json:"confidence"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Class       string  `json:"class"`
	ClassID     int     `json:"class_id"`
}

// Result is the inference response. A response without a predictions key
// decodes to an empty result.
type Result struct {
	Predictions []Prediction `json:"predictions"`
}

// Classifier runs object detection on one frame.
type Classifier interface {
	Infer(ctx context.Context, frame model.Frame, modelID string) (*Result, error)
}

// New builds the classifier selected by cfg.ClassifierBackend.
func New(cfg *config.Config, log *logger.Logger) (Classifier, error) {
	switch cfg.ClassifierBackend {
	case "", "roboflow":
		return NewHTTPClient(cfg.RoboflowAPIURL, cfg.RoboflowAPIKey, WithTimeout(cfg.ClassifierTimeout))
	case "dnn":
		return NewDNNClassifier(cfg.ModelPath, cfg.ConfigPath, cfg.DNNMinConfidence, log)
	}
	return nil, fmt.Errorf("unknown classifier backend %q", cfg.ClassifierBackend)
}
