package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
	"pettracker/internal/model"
	"pettracker/internal/repository"
	"pettracker/internal/service/eventbus"
)

const (
	DefaultKeepAlive = 5 * time.Second
	DefaultSendQueue = 32
	writeWait        = 10 * time.Second
)

type Options struct {
	// KeepAlive is the idle period after which a client gets a ping message.
	KeepAlive           time.Duration
	BootstrapDetections int
	BootstrapSnapshots  int
	SendQueue           int
	Clock               clock.Clock
}

func (o Options) withDefaults() Options {
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.BootstrapDetections <= 0 {
		o.BootstrapDetections = 10
	}
	if o.BootstrapSnapshots <= 0 {
		o.BootstrapSnapshots = 5
	}
	if o.SendQueue <= 0 {
		o.SendQueue = DefaultSendQueue
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Client is one live connection. Messages are queued on send and written by
// the client's own goroutine, so a slow connection never blocks the hub.
type Client struct {
	hub  *HubService
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	// topics limits which events the client receives; nil means all.
	topics map[eventbus.Topic]struct{}
}

func (c *Client) wants(t eventbus.Topic) bool {
	if c.topics == nil {
		return true
	}
	_, ok := c.topics[t]
	return ok
}

// HubService fans bus events out to every connected live client.
type HubService struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	done       chan struct{}

	detections repository.DetectionRepository
	snapshots  repository.SnapshotRepository
	opts       Options
	logger     *logger.Logger
}

func NewHubService(detections repository.DetectionRepository, snapshots repository.SnapshotRepository, opts Options, log *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		detections: detections,
		snapshots:  snapshots,
		opts:       opts.withDefaults(),
		logger:     log,
	}
}

// Run owns client registration until ctx is cancelled, then closes every
// connection.
func (h *HubService) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Register queues the bootstrap message for conn and starts its writer.
// The bootstrap is always the first message the client receives. When
// topics are given, only events on those topics are forwarded; keep-alives
// are always sent.
func (h *HubService) Register(ctx context.Context, conn *websocket.Conn, topics ...eventbus.Topic) (*Client, error) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.opts.SendQueue),
		done: make(chan struct{}),
	}
	if len(topics) > 0 {
		client.topics = make(map[eventbus.Topic]struct{}, len(topics))
		for _, t := range topics {
			client.topics[t] = struct{}{}
		}
	}

	msg, err := json.Marshal(h.bootstrap(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to encode bootstrap: %w", err)
	}
	client.send <- msg
	go client.writePump()

	select {
	case h.register <- client:
		return client, nil
	case <-h.done:
		client.close()
		return nil, fmt.Errorf("hub is shut down")
	}
}

// Unregister removes the client and closes its connection. Safe to call
// more than once.
func (h *HubService) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.remove(client)
	}
}

func (h *HubService) remove(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mutex.Unlock()

	client.close()
	if ok {
		h.logger.Info("Client disconnected. Total: %d", total)
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mutex.Unlock()

	for c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (h *HubService) bootstrap(ctx context.Context) dto.LiveMessage {
	data := dto.Bootstrap{LastDetections: []model.Detection{}, LastSnapshots: []string{}}

	if dets, err := h.detections.Recent(ctx, h.opts.BootstrapDetections); err != nil {
		h.logger.Warning("Failed to load recent detections for bootstrap: %v", err)
	} else {
		data.LastDetections = dets
	}
	if snaps, err := h.snapshots.Recent(ctx, h.opts.BootstrapSnapshots); err != nil {
		h.logger.Warning("Failed to load recent snapshots for bootstrap: %v", err)
	} else {
		for _, s := range snaps {
			data.LastSnapshots = append(data.LastSnapshots, s.Filename)
		}
	}

	return dto.LiveMessage{
		Timestamp: h.opts.Clock.Now(),
		Status:    dto.StatusConnected,
		Message:   dto.MessageConnected,
		Data:      data,
	}
}

// HandleEvent is the bus handler for every topic. Clients whose queue is
// full are dropped rather than waited for.
func (h *HubService) HandleEvent(_ context.Context, ev eventbus.Event) error {
	msg, err := json.Marshal(dto.LiveMessage{
		Timestamp: ev.Time,
		Status:    dto.StatusActive,
		Message:   ev.Topic.String(),
		Data:      payload(ev),
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ev.Topic, err)
	}

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		if !c.wants(ev.Topic) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warning("Client send queue full, disconnecting")
			h.remove(c)
		}
	}
	return nil
}

// Subscribe registers the hub for every topic on bus.
func (h *HubService) Subscribe(bus *eventbus.Bus) error {
	for _, topic := range eventbus.Topics() {
		if _, err := bus.Subscribe(topic, "live-"+topic.String(), h.HandleEvent); err != nil {
			return err
		}
	}
	return nil
}

func payload(ev eventbus.Event) any {
	switch {
	case ev.Detection != nil:
		return ev.Detection
	case ev.Snapshot != nil:
		return ev.Snapshot
	default:
		return dto.CameraPayload{CameraID: ev.CameraID}
	}
}

func (h *HubService) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done is closed once the client has been disconnected.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) writePump() {
	keepAlive := c.hub.opts.KeepAlive
	timer := c.hub.opts.Clock.Timer(keepAlive)
	defer timer.Stop()

	for {
		var msg []byte
		select {
		case <-c.done:
			return
		case msg = <-c.send:
		case <-timer.C:
			ping, _ := json.Marshal(dto.LiveMessage{
				Timestamp: c.hub.opts.Clock.Now(),
				Status:    dto.StatusActive,
				Message:   dto.MessagePing,
			})
			msg = ping
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.logger.Debug("Error sending message: %v", err)
			c.hub.Unregister(c)
			return
		}
		timer.Reset(keepAlive)
	}
}

// ReadPump consumes client frames until the connection fails, then
// unregisters the client. Clients only send control frames.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("Viewer disconnected with error: %v", err)
			}
			return
		}
	}
}
