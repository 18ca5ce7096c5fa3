package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pettracker/internal/logger"
	"pettracker/internal/model"
	"pettracker/internal/repository"
	"pettracker/internal/service/ai"
	"pettracker/internal/service/eventbus"
)

// DefaultSnapshotQuality is the JPEG quality of snapshot files.
const DefaultSnapshotQuality = 85

// EncodeFunc encodes a frame at the given JPEG quality.
type EncodeFunc func(frame model.Frame, quality int) ([]byte, error)

// Publisher hands snapshot_made events back to the bus.
type Publisher interface {
	Publish(ev eventbus.Event) error
}

type SnapshotOption func(*SnapshotWriter)

func WithQuality(q int) SnapshotOption {
	return func(w *SnapshotWriter) {
		if q > 0 && q <= 100 {
			w.quality = q
		}
	}
}

func WithEncoder(fn EncodeFunc) SnapshotOption {
	return func(w *SnapshotWriter) { w.encode = fn }
}

// SnapshotWriter stores the frame of every high-confidence detection as a
// JPEG file, records it and announces it on snapshot_made.
type SnapshotWriter struct {
	dir     string
	quality int
	encode  EncodeFunc
	repo    repository.SnapshotRepository
	pub     Publisher
	logger  *logger.Logger
}

func NewSnapshotWriter(dir string, repo repository.SnapshotRepository, pub Publisher, log *logger.Logger, opts ...SnapshotOption) *SnapshotWriter {
	w := &SnapshotWriter{
		dir:     dir,
		quality: DefaultSnapshotQuality,
		encode:  ai.EncodeJPEG,
		repo:    repo,
		pub:     pub,
		logger:  log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *SnapshotWriter) Dir() string { return w.dir }

// Subscribe registers the writer on bus.
func (w *SnapshotWriter) Subscribe(bus *eventbus.Bus) (*eventbus.Subscription, error) {
	return bus.Subscribe(eventbus.TopicHighConfidenceDetectionMade, "snapshot-writer", w.Handle)
}

func (w *SnapshotWriter) Handle(ctx context.Context, ev eventbus.Event) error {
	if ev.Detection == nil || ev.Frame == nil {
		return fmt.Errorf("high confidence event without detection or frame")
	}

	img, err := w.encode(*ev.Frame, w.quality)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	snap, err := w.write(ev.Detection, img)
	if err != nil {
		return err
	}
	w.logger.Info("📸 Snapshot saved: %s", snap.Filename)

	// A record that cannot be stored still leaves a file worth announcing.
	_, insertErr := w.repo.Insert(ctx, snap)

	if err := w.pub.Publish(eventbus.Event{
		Topic:    eventbus.TopicSnapshotMade,
		CameraID: snap.CameraID,
		Snapshot: snap,
	}); err != nil {
		w.logger.Warning("Failed to publish snapshot %s: %v", snap.Filename, err)
	}

	if insertErr != nil {
		return fmt.Errorf("failed to record snapshot %s: %w", snap.Filename, insertErr)
	}
	return nil
}

// write stores img under the detection's snapshot name. The file is written
// to a temporary name first so readers never see a partial image.
func (w *SnapshotWriter) write(d *model.Detection, img []byte) (*model.Snapshot, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	name := SnapshotFilename(d)
	path := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, ".snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if _, err := tmp.Write(img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		w.logger.Debug("chmod %s: %v", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	return &model.Snapshot{
		Filename:   name,
		CameraID:   d.CameraID,
		ClassName:  d.ClassName,
		Confidence: d.Confidence,
		Timestamp:  d.Timestamp,
		FilePath:   path,
		FileSize:   int64(len(img)),
	}, nil
}
