package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"pettracker/internal/logger"
	"pettracker/internal/model"
)

func startBus(t *testing.T, opts ...Option) (*Bus, context.CancelFunc) {
	t.Helper()
	b := New(logger.New(zaptest.NewLogger(t)), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-b.Done()
	})
	return b, cancel
}

// recorder collects events delivered to a handler.
type recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1024)}
}

func (r *recorder) handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recorder) waitFor(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		got := len(r.events)
		r.mu.Unlock()
		if got >= n {
			break
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, got)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func detectionEvent(topic Topic, id string) Event {
	return Event{
		Topic:     topic,
		CameraID:  "cam1",
		Detection: &model.Detection{DetectionID: id, CameraID: "cam1", Confidence: 0.5},
	}
}

func TestTopic_Names(t *testing.T) {
	tests := []struct {
		topic Topic
		name  string
	}{
		{TopicDetectionMade, "detection_made"},
		{TopicHighConfidenceDetectionMade, "high_confidence_detection_made"},
		{TopicSnapshotMade, "snapshot_made"},
		{TopicCameraConnected, "camera_connected"},
		{TopicCameraDisconnected, "camera_disconnected"},
	}

	for _, tt := range tests {
		if tt.topic.String() != tt.name {
			t.Errorf("Topic(%d).String() = %q, expected %q", tt.topic, tt.topic.String(), tt.name)
		}
		parsed, err := ParseTopic(tt.name)
		if err != nil || parsed != tt.topic {
			t.Errorf("ParseTopic(%q) = %v, %v", tt.name, parsed, err)
		}
	}

	if _, err := ParseTopic("frame_made"); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}
	if Topic(99).Valid() {
		t.Error("Topic(99) should not be valid")
	}
}

func TestParseTopicList(t *testing.T) {
	tests := []struct {
		raw     string
		want    []Topic
		wantErr bool
	}{
		{"", nil, false},
		{" , ", nil, false},
		{"snapshot_made", []Topic{TopicSnapshotMade}, false},
		{"detection_made, camera_connected", []Topic{TopicDetectionMade, TopicCameraConnected}, false},
		{"detection_made,frame_made", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseTopicList(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTopicList(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownTopic) {
			t.Errorf("ParseTopicList(%q): expected ErrUnknownTopic, got %v", tt.raw, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseTopicList(%q) = %v, expected %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseTopicList(%q) = %v, expected %v", tt.raw, got, tt.want)
				break
			}
		}
	}
}

func TestBus_DeliversToEveryHandler(t *testing.T) {
	b, _ := startBus(t)
	first, second := newRecorder(), newRecorder()

	if _, err := b.Subscribe(TopicDetectionMade, "first", first.handle); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if _, err := b.Subscribe(TopicDetectionMade, "second", second.handle); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	if err := b.Publish(detectionEvent(TopicDetectionMade, "d1")); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	for _, r := range []*recorder{first, second} {
		events := r.waitFor(t, 1)
		if events[0].Detection.DetectionID != "d1" {
			t.Errorf("unexpected event payload: %+v", events[0].Detection)
		}
		if events[0].Time.IsZero() {
			t.Error("Publish should stamp the event time")
		}
	}
}

func TestBus_TopicsAreIndependent(t *testing.T) {
	b, _ := startBus(t)
	plain, high := newRecorder(), newRecorder()
	b.Subscribe(TopicDetectionMade, "plain", plain.handle)
	b.Subscribe(TopicHighConfidenceDetectionMade, "high", high.handle)

	b.Publish(detectionEvent(TopicHighConfidenceDetectionMade, "d1"))
	high.waitFor(t, 1)

	// A follow-up on the plain topic proves the first event was dispatched.
	b.Publish(detectionEvent(TopicDetectionMade, "d2"))
	events := plain.waitFor(t, 1)
	if len(events) != 1 || events[0].Detection.DetectionID != "d2" {
		t.Errorf("plain subscriber received %+v", events)
	}
}

func TestBus_FailingHandlerIsIsolated(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
	}{
		{"returns error", func(context.Context, Event) error { return errors.New("database down") }},
		{"panics", func(context.Context, Event) error { panic("nil map") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, cancel := startBus(t)
			good := newRecorder()
			b.Subscribe(TopicDetectionMade, "failing", tt.handler)
			b.Subscribe(TopicDetectionMade, "good", good.handle)

			if err := b.Publish(detectionEvent(TopicDetectionMade, "d1")); err != nil {
				t.Fatalf("Publish must not surface handler failures: %v", err)
			}
			good.waitFor(t, 1)

			cancel()
			<-b.Done()

			if got := good.count(); got != 1 {
				t.Errorf("good handler received %d events, expected exactly 1", got)
			}
			stats := b.Stats()
			if stats.Failed != 1 || stats.Delivered != 1 {
				t.Errorf("stats = %+v, expected 1 failed and 1 delivered", stats)
			}
		})
	}
}

func TestBus_FIFOPerSubscription(t *testing.T) {
	b, _ := startBus(t)
	r := newRecorder()
	b.Subscribe(TopicDetectionMade, "ordered", r.handle)

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		if err := b.Publish(detectionEvent(TopicDetectionMade, id)); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	events := r.waitFor(t, len(ids))
	for i, ev := range events {
		if ev.Detection.DetectionID != ids[i] {
			t.Fatalf("event %d = %s, expected %s", i, ev.Detection.DetectionID, ids[i])
		}
	}
}

func TestBus_SlowHandlerLagsWithoutLosingEvents(t *testing.T) {
	b, cancel := startBus(t)
	release := make(chan struct{})

	slow := newRecorder()
	b.Subscribe(TopicDetectionMade, "slow", func(ctx context.Context, ev Event) error {
		<-release
		time.Sleep(time.Millisecond)
		return slow.handle(ctx, ev)
	})
	fast := newRecorder()
	b.Subscribe(TopicDetectionMade, "fast", fast.handle)

	const total = 200
	for i := 0; i < total; i++ {
		if err := b.Publish(detectionEvent(TopicDetectionMade, fmt.Sprintf("d%d", i))); err != nil {
			t.Fatalf("Publish %d returned error: %v", i, err)
		}
		time.Sleep(200 * time.Microsecond)
	}

	// The slow handler is still blocked on its first event.
	fast.waitFor(t, total)
	if got := slow.count(); got != 0 {
		t.Fatalf("slow handler should still be blocked, got %d events", got)
	}
	if b.Stats().Pending == 0 {
		t.Error("events behind the blocked handler should be reported as pending")
	}

	close(release)
	cancel()
	<-b.Done()

	events := slow.waitFor(t, total)
	if len(events) != total {
		t.Fatalf("Expected %d events for the slow handler, got %d", total, len(events))
	}
	for i, ev := range events {
		if want := fmt.Sprintf("d%d", i); ev.Detection.DetectionID != want {
			t.Fatalf("event %d = %s, expected %s", i, ev.Detection.DetectionID, want)
		}
	}
	if stats := b.Stats(); stats.Delivered != 2*total || stats.Pending != 0 {
		t.Errorf("stats = %+v, expected %d delivered and nothing pending", stats, 2*total)
	}
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	b, _ := startBus(t)
	early := newRecorder()
	b.Subscribe(TopicDetectionMade, "early", early.handle)

	b.Publish(detectionEvent(TopicDetectionMade, "before"))
	early.waitFor(t, 1)

	late := newRecorder()
	b.Subscribe(TopicDetectionMade, "late", late.handle)
	b.Publish(detectionEvent(TopicDetectionMade, "after"))

	events := late.waitFor(t, 1)
	early.waitFor(t, 2)
	if len(events) != 1 || events[0].Detection.DetectionID != "after" {
		t.Errorf("late subscriber received %+v", events)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b, cancel := startBus(t)
	removed, kept := newRecorder(), newRecorder()
	sub, _ := b.Subscribe(TopicDetectionMade, "removed", removed.handle)
	b.Subscribe(TopicDetectionMade, "kept", kept.handle)

	b.Publish(detectionEvent(TopicDetectionMade, "d1"))
	removed.waitFor(t, 1)
	kept.waitFor(t, 1)

	sub.Unsubscribe()
	sub.Unsubscribe()

	b.Publish(detectionEvent(TopicDetectionMade, "d2"))
	kept.waitFor(t, 2)

	cancel()
	<-b.Done()
	if got := removed.count(); got != 1 {
		t.Errorf("unsubscribed handler received %d events, expected 1", got)
	}
	if b.Stats().Subscribers != 1 {
		t.Errorf("expected 1 subscriber left, got %d", b.Stats().Subscribers)
	}
}

func TestBus_UnsubscribeDuringDelivery(t *testing.T) {
	b, _ := startBus(t)
	r := newRecorder()
	var subs []*Subscription
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		s, _ := b.Subscribe(TopicDetectionMade, "self-removing", func(ctx context.Context, ev Event) error {
			mu.Lock()
			defer mu.Unlock()
			for _, s := range subs {
				s.Unsubscribe()
			}
			return nil
		})
		mu.Lock()
		subs = append(subs, s)
		mu.Unlock()
	}
	b.Subscribe(TopicDetectionMade, "observer", r.handle)

	for i := 0; i < 3; i++ {
		b.Publish(detectionEvent(TopicDetectionMade, "d"))
	}
	r.waitFor(t, 3)
}

func TestBus_QueueFull(t *testing.T) {
	// Run is never started so the queue cannot drain.
	b := New(logger.NewNop(), WithQueueSize(2))

	for i := 0; i < 2; i++ {
		if err := b.Publish(detectionEvent(TopicDetectionMade, "d")); err != nil {
			t.Fatalf("Publish %d returned error: %v", i, err)
		}
	}
	if err := b.Publish(detectionEvent(TopicDetectionMade, "d")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if got := b.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, expected 1", got)
	}
}

func TestBus_ShutdownDrainsAndRejects(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := New(logger.NewNop())
	r := newRecorder()
	b.Subscribe(TopicDetectionMade, "drained", r.handle)

	// Published before Run: must still be delivered during shutdown.
	for i := 0; i < 3; i++ {
		b.Publish(detectionEvent(TopicDetectionMade, "queued"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := r.count(); got != 3 {
		t.Errorf("expected 3 drained events, got %d", got)
	}
	if err := b.Publish(detectionEvent(TopicDetectionMade, "late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after shutdown, got %v", err)
	}
	if _, err := b.Subscribe(TopicDetectionMade, "late", r.handle); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Subscribe, got %v", err)
	}
	if err := b.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

func TestBus_SubscribeValidation(t *testing.T) {
	b := New(logger.NewNop())

	if _, err := b.Subscribe(Topic(42), "bad", func(context.Context, Event) error { return nil }); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}
	if _, err := b.Subscribe(TopicDetectionMade, "nil", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
	if err := b.Publish(Event{Topic: Topic(42)}); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic from Publish, got %v", err)
	}
}
