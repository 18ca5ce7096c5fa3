package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pettracker/internal/logger"
)

var (
	ErrClosed       = errors.New("eventbus: bus is closed")
	ErrQueueFull    = errors.New("eventbus: event queue is full")
	ErrUnknownTopic = errors.New("eventbus: unknown topic")
	ErrNilHandler   = errors.New("eventbus: handler is nil")
)

const DefaultQueueSize = 256

// Handler consumes one event. Returned errors and panics are logged and
// counted; they never reach the publisher or other handlers.
type Handler func(ctx context.Context, ev Event) error

// Stats is a point-in-time view of bus counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Rejected    uint64 `json:"rejected"`
	Delivered   uint64 `json:"delivered"`
	Failed      uint64 `json:"failed"`
	Pending     int    `json:"pending"`
	Subscribers int    `json:"subscribers"`
}

type Option func(*Bus)

// WithQueueSize sets the capacity of the publish hand-off queue.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// Bus is an in-process publish/subscribe hub. Publish hands events to a
// bounded queue; Run owns the single dispatch loop that appends each event
// to the pending list of every subscription on the topic. Every subscription
// drains its own list on its own goroutine, so handlers of one subscription
// run strictly in publish order and a slow handler only lags behind. Pending
// lists are unbounded: an accepted event reaches every subscriber.
type Bus struct {
	logger    *logger.Logger
	queueSize int
	queue     chan Event

	mu     sync.RWMutex
	closed bool
	// subs slices are copy-on-write; dispatch iterates whatever slice it loaded.
	subs   map[Topic][]*Subscription
	nextID uint64

	workers  sync.WaitGroup
	runOnce  sync.Once
	finished chan struct{}

	published atomic.Uint64
	rejected  atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// New creates a bus. Events published before Run starts wait in the queue.
func New(log *logger.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:    log,
		queueSize: DefaultQueueSize,
		subs:      make(map[Topic][]*Subscription),
		finished:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.queue = make(chan Event, b.queueSize)
	return b
}

// Subscribe registers handler for topic. name identifies the subscription
// in logs.
func (b *Bus) Subscribe(topic Topic, name string, handler Handler) (*Subscription, error) {
	if !topic.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTopic, int(topic))
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		id:      b.nextID,
		topic:   topic,
		name:    name,
		handler: handler,
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		drain:   make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		bus:     b,
	}

	current := b.subs[topic]
	next := make([]*Subscription, len(current), len(current)+1)
	copy(next, current)
	b.subs[topic] = append(next, s)

	b.workers.Add(1)
	go s.run()

	b.logger.Debug("Subscribed %s to %s", name, topic)
	return s, nil
}

// Publish hands ev to the dispatch loop without blocking. It fails with
// ErrQueueFull when the queue is saturated and ErrClosed after shutdown.
func (b *Bus) Publish(ev Event) error {
	if !ev.Topic.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownTopic, int(ev.Topic))
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.rejected.Add(1)
		return ErrClosed
	}

	select {
	case b.queue <- ev:
		b.published.Add(1)
		return nil
	default:
		b.rejected.Add(1)
		return ErrQueueFull
	}
}

// Run dispatches queued events until ctx is cancelled. On cancellation it
// stops accepting publishes, dispatches what is already queued, lets every
// subscription finish its pending events and returns. Run must be called once.
func (b *Bus) Run(ctx context.Context) error {
	started := false
	b.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("eventbus: Run called more than once")
	}

	b.logger.Info("Event bus started")
	for {
		select {
		case ev := <-b.queue:
			b.dispatch(ev)
		case <-ctx.Done():
			b.shutdown()
			return nil
		}
	}
}

// Done is closed once Run has finished draining.
func (b *Bus) Done() <-chan struct{} {
	return b.finished
}

// Stats returns the current counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n, pending := 0, 0
	for _, subs := range b.subs {
		n += len(subs)
		for _, s := range subs {
			pending += s.backlog()
		}
	}
	b.mu.RUnlock()

	return Stats{
		Published:   b.published.Load(),
		Rejected:    b.rejected.Load(),
		Delivered:   b.delivered.Load(),
		Failed:      b.failed.Load(),
		Pending:     pending,
		Subscribers: n,
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	subs := b.subs[ev.Topic]
	b.mu.RUnlock()

	for _, s := range subs {
		if s.removed.Load() {
			continue
		}
		s.enqueue(ev)
	}
}

func (b *Bus) shutdown() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	// Publish cannot add to the queue once closed is set.
	for drained := false; !drained; {
		select {
		case ev := <-b.queue:
			b.dispatch(ev)
		default:
			drained = true
		}
	}

	for _, s := range all {
		close(s.drain)
	}
	b.workers.Wait()
	close(b.finished)
	b.logger.Info("Event bus stopped")
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[s.topic]
	next := make([]*Subscription, 0, len(current))
	for _, other := range current {
		if other != s {
			next = append(next, other)
		}
	}
	b.subs[s.topic] = next
}

// Subscription is one handler registered on one topic.
type Subscription struct {
	id      uint64
	topic   Topic
	name    string
	handler Handler
	removed atomic.Bool

	pendingMu sync.Mutex
	pending   []Event
	signal    chan struct{}

	stop   chan struct{}
	drain  chan struct{}
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	bus    *Bus
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic { return s.topic }

// Name returns the subscription name.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe removes the subscription. No event is delivered to it after
// Unsubscribe returns, including events still pending for it.
// A handler invocation already in progress is allowed to finish.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.removed.Store(true)
		s.bus.remove(s)
		s.cancel()
		close(s.stop)
	})
}

func (s *Subscription) run() {
	defer s.bus.workers.Done()
	defer s.cancel()

	for {
		select {
		case <-s.stop:
			return
		case <-s.signal:
			s.deliverPending()
		case <-s.drain:
			// Dispatch has finished, so nothing is added after this take.
			s.deliverPending()
			return
		}
	}
}

// enqueue appends ev to the pending list and wakes the delivery goroutine.
// It never blocks on the handler.
func (s *Subscription) enqueue(ev Event) {
	s.pendingMu.Lock()
	s.pending = append(s.pending, ev)
	s.pendingMu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) backlog() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// deliverPending hands every pending event to the handler in order, taking
// newly appended events until the list is empty.
func (s *Subscription) deliverPending() {
	for {
		s.pendingMu.Lock()
		batch := s.pending
		s.pending = nil
		s.pendingMu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			if s.removed.Load() {
				return
			}
			s.deliver(ev)
		}
	}
}

func (s *Subscription) deliver(ev Event) {
	if s.removed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.bus.failed.Add(1)
			s.bus.logger.Error("Handler %s panicked on %s: %v", s.name, ev.Topic, r)
		}
	}()

	if err := s.handler(s.ctx, ev); err != nil {
		s.bus.failed.Add(1)
		s.bus.logger.Error("Handler %s failed on %s: %v", s.name, ev.Topic, err)
		return
	}
	s.bus.delivered.Add(1)
}
