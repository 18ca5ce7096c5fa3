package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"pettracker/internal/logger"
	"pettracker/internal/model"
)

// ErrNetworkNotLoaded is returned by a DNNClassifier without a usable network.
var ErrNetworkNotLoaded = errors.New("ai: detection network not initialized")

// DNNClassifier runs an SSD MobileNet COCO network locally. gocv.Net is not
// safe for concurrent use, so calls are serialized.
type DNNClassifier struct {
	mu            sync.Mutex
	net           gocv.Net
	minConfidence float64
	logger        *logger.Logger
}

// NewDNNClassifier loads the network from a frozen graph and its config.
func NewDNNClassifier(modelPath, configPath string, minConfidence float64, log *logger.Logger) (*DNNClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	log.Info("Detection network initialized successfully")
	return &DNNClassifier{net: net, minConfidence: minConfidence, logger: log}, nil
}

// Infer ignores modelID; the loaded network is the model.
func (c *DNNClassifier) Infer(ctx context.Context, frame model.Frame, modelID string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.net.Empty() {
		return nil, ErrNetworkNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// SSD COCO input: 300x300, scaled to [-1, 1], BGR swapped to RGB.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	// Rows: [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized.
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float64(mat.Cols()), float64(mat.Rows())
	result := &Result{}
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence <= c.minConfidence {
			continue
		}
		classID := int(rows.GetFloatAt(i, 1))
		x1 := float64(rows.GetFloatAt(i, 3)) * cols
		y1 := float64(rows.GetFloatAt(i, 4)) * height
		x2 := float64(rows.GetFloatAt(i, 5)) * cols
		y2 := float64(rows.GetFloatAt(i, 6)) * height

		result.Predictions = append(result.Predictions, Prediction{
			Confidence: min(confidence, 1),
			X:          (x1 + x2) / 2,
			Y:          (y1 + y2) / 2,
			Width:      x2 - x1,
			Height:     y2 - y1,
			Class:      ClassLabel(classID),
			ClassID:    classID,
		})
	}
	return result, nil
}

// Close releases the network.
func (c *DNNClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

var cocoLabels = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	4:  "motorcycle",
	6:  "bus",
	8:  "truck",
	16: "bird",
	17: "cat",
	18: "dog",
	19: "horse",
	20: "sheep",
	21: "cow",
}

// ClassLabel maps a COCO class id to its label.
func ClassLabel(classID int) string {
	if label, ok := cocoLabels[classID]; ok {
		return label
	}
	return fmt.Sprintf("unknown%d", classID)
}
