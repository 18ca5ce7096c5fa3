package storage

import (
	"context"
	"fmt"

	"pettracker/internal/logger"
	"pettracker/internal/repository"
	"pettracker/internal/service/eventbus"
)

// Recorder persists every detection published on detection_made.
type Recorder struct {
	repo   repository.DetectionRepository
	logger *logger.Logger
}

func NewRecorder(repo repository.DetectionRepository, log *logger.Logger) *Recorder {
	return &Recorder{repo: repo, logger: log}
}

// Subscribe registers the recorder on bus.
func (r *Recorder) Subscribe(bus *eventbus.Bus) (*eventbus.Subscription, error) {
	return bus.Subscribe(eventbus.TopicDetectionMade, "recorder", r.Handle)
}

func (r *Recorder) Handle(ctx context.Context, ev eventbus.Event) error {
	if ev.Detection == nil {
		return fmt.Errorf("detection event without detection")
	}
	id, err := r.repo.Insert(ctx, ev.Detection)
	if err != nil {
		return fmt.Errorf("failed to save detection %s: %w", ev.Detection.DetectionID, err)
	}
	r.logger.Debug("Saved detection %s (%s, %.2f) as #%d", ev.Detection.DetectionID, ev.Detection.ClassName, ev.Detection.Confidence, id)
	return nil
}
