package detector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"pettracker/internal/logger"
	"pettracker/internal/model"
	"pettracker/internal/service/ai"
	"pettracker/internal/service/eventbus"
)

// DefaultStopTimeout bounds how long Stop waits for an in-flight cycle.
const DefaultStopTimeout = 5 * time.Second

// idleWait is the minimum sleep after a cycle that found no new frame, so a
// camera whose stream ended does not spin when Interval is zero.
const idleWait = 20 * time.Millisecond

// FrameProvider is the read side of a frame source.
type FrameProvider interface {
	CameraID() string
	LatestFrame() (model.Frame, bool)
}

// Publisher hands events off to the bus without running subscriber code.
type Publisher interface {
	Publish(ev eventbus.Event) error
}

type Options struct {
	ModelID string
	// ConfidenceThreshold gates the high-confidence topic. A detection must
	// be strictly above it.
	ConfidenceThreshold float64
	Interval            time.Duration
	StopTimeout         time.Duration
}

type Option func(*Detector)

// WithClock replaces the wall clock used for the polling interval and
// detection timestamps.
func WithClock(c clock.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// Stats are cumulative counters over the detector's lifetime.
type Stats struct {
	Cycles     uint64 // classifier calls made
	Skipped    uint64 // cycles without a new frame
	Failures   uint64 // classifier errors
	Detections uint64 // detections published
	Dropped    uint64 // events the bus refused
}

// Detector polls one camera's latest frame on a fixed cadence, classifies
// it and publishes the resulting detections.
type Detector struct {
	src    FrameProvider
	cls    ai.Classifier
	pub    Publisher
	opts   Options
	clock  clock.Clock
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc

	cycles, skipped, failures, detections, dropped atomic.Uint64
}

func New(src FrameProvider, cls ai.Classifier, pub Publisher, opts Options, log *logger.Logger, options ...Option) *Detector {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	d := &Detector{
		src:    src,
		cls:    cls,
		pub:    pub,
		opts:   opts,
		clock:  clock.New(),
		logger: log.With("camera", src.CameraID()),
	}
	for _, o := range options {
		o(d)
	}
	return d
}

func (d *Detector) CameraID() string { return d.src.CameraID() }

// Start launches the polling loop. Calling Start on a running detector is a no-op.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.cancel = cancel
	d.running = true

	go d.loop(ctx, d.stop, d.done)

	d.logger.Info("🔍 Detection started for %s (model %s, every %v)", d.src.CameraID(), d.opts.ModelID, d.opts.Interval)
	d.publish(eventbus.Event{Topic: eventbus.TopicCameraConnected, CameraID: d.src.CameraID()})
}

// Stop ends the loop and waits up to StopTimeout for an in-flight cycle to
// finish. A classifier call still running after that is cancelled and left
// to return on its own; its results are discarded. Stop is idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	done, cancel := d.done, d.cancel
	d.mu.Unlock()

	timer := d.clock.Timer(d.opts.StopTimeout)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		d.logger.Warning("Detector for %s did not stop within %v; abandoning in-flight call", d.src.CameraID(), d.opts.StopTimeout)
	}
	cancel()

	d.logger.Info("Detection stopped for %s", d.src.CameraID())
	d.publish(eventbus.Event{Topic: eventbus.TopicCameraDisconnected, CameraID: d.src.CameraID()})
}

func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Detector) Stats() Stats {
	return Stats{
		Cycles:     d.cycles.Load(),
		Skipped:    d.skipped.Load(),
		Failures:   d.failures.Load(),
		Detections: d.detections.Load(),
		Dropped:    d.dropped.Load(),
	}
}

func (d *Detector) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	var lastSeq uint64
	idle := false
	for {
		wait := d.opts.Interval
		if idle && wait < idleWait {
			wait = idleWait
		}
		timer := d.clock.Timer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		select {
		case <-stop:
			return
		default:
		}
		idle = !d.cycle(ctx, stop, &lastSeq)
	}
}

// cycle classifies the latest frame once and reports whether there was a
// new frame to classify. A frame already classified is skipped, so a camera
// whose stream ended stops producing detections.
func (d *Detector) cycle(ctx context.Context, stop <-chan struct{}, lastSeq *uint64) bool {
	frame, ok := d.src.LatestFrame()
	if !ok || frame.Seq == *lastSeq {
		d.skipped.Add(1)
		return false
	}
	*lastSeq = frame.Seq

	d.cycles.Add(1)
	res, err := d.cls.Infer(ctx, frame, d.opts.ModelID)
	if err != nil {
		if ctx.Err() != nil {
			// Stop gave up on this call and cancelled it.
			d.logger.Debug("Inference for %s abandoned on stop: %v", d.src.CameraID(), err)
			return true
		}
		d.failures.Add(1)
		d.logger.Error("Inference failed for %s: %v", d.src.CameraID(), err)
		return true
	}

	select {
	case <-stop:
		return true
	default:
	}
	if res == nil || len(res.Predictions) == 0 {
		return true
	}

	now := d.clock.Now()
	for _, p := range res.Predictions {
		det := d.detection(p, now)
		if err := det.Validate(); err != nil {
			d.logger.Warning("Discarding prediction from %s: %v", d.src.CameraID(), err)
			continue
		}
		d.emit(det, &frame)
	}
	return true
}

func (d *Detector) detection(p ai.Prediction, now time.Time) *model.Detection {
	id := p.DetectionID
	if id == "" {
		id = uuid.NewString()
	}
	return &model.Detection{
		DetectionID: id,
		Timestamp:   now,
		ModelID:     d.opts.ModelID,
		CameraID:    d.src.CameraID(),
		X:           p.X,
		Y:           p.Y,
		Width:       p.Width,
		Height:      p.Height,
		Confidence:  p.Confidence,
		ClassName:   p.Class,
		ClassID:     p.ClassID,
	}
}

func (d *Detector) emit(det *model.Detection, frame *model.Frame) {
	d.detections.Add(1)
	d.logger.Debug("Detected %s on %s (%.2f)", det.ClassName, det.CameraID, det.Confidence)

	ev := eventbus.Event{
		Topic:     eventbus.TopicDetectionMade,
		CameraID:  det.CameraID,
		Detection: det,
		Frame:     frame,
	}
	d.publish(ev)

	if det.Confidence > d.opts.ConfidenceThreshold {
		ev.Topic = eventbus.TopicHighConfidenceDetectionMade
		d.publish(ev)
	}
}

func (d *Detector) publish(ev eventbus.Event) {
	if err := d.pub.Publish(ev); err != nil {
		d.dropped.Add(1)
		d.logger.Warning("Failed to publish %s for %s: %v", ev.Topic, d.src.CameraID(), err)
	}
}
