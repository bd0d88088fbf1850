package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// ErrStopped is returned by Publish and Subscribe after Stop.
var ErrStopped = errors.New("telemetry: hub stopped")

// Config configures a Hub.
type Config struct {
	// HeartbeatInterval is the hub heartbeat period while clients are
	// connected. Zero disables it.
	HeartbeatInterval time.Duration

	// BufferSize bounds the replay buffer. Defaults to 50.
	BufferSize int

	// ClientQueue bounds each client's pending events. Defaults to 100.
	ClientQueue int

	// Snapshot, when set, fills the data of the ready event sent to every
	// new client.
	Snapshot func() map[string]interface{}

	LoggerFactory logging.LoggerFactory
}

type client struct {
	id     string
	w      http.ResponseWriter
	types  map[string]bool
	events chan Event
	cancel context.CancelFunc
	mu     sync.Mutex
}

func (c *client) wants(ev Event) bool {
	return len(c.types) == 0 || ev.Type == TypeReady || c.types[ev.Type]
}

// Hub distributes events to SSE clients.
//
// h.mu guards clients, the ID counter, the buffer and the heartbeat state.
// It is never held while writing to a client.
type Hub struct {
	cfg Config
	log logging.LeveledLogger

	mu        sync.Mutex
	clients   map[string]*client
	lastID    int64
	buffer    []Event
	dropped   uint64
	stopBeat  chan struct{}
	stopped   bool
	done      chan struct{}
	heartbeat sync.WaitGroup
}

// NewHub creates a hub.
func NewHub(cfg Config) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.ClientQueue <= 0 {
		cfg.ClientQueue = 100
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Hub{
		cfg:     cfg,
		log:     cfg.LoggerFactory.NewLogger("telemetry"),
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
}

// Publish assigns the next event ID, buffers the event and queues it for
// every connected client that wants it. A client whose queue is full
// misses the event; it can recover it from the buffer by reconnecting.
func (h *Hub) Publish(ev Event) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStopped
	}
	h.lastID++
	ev.ID = h.lastID
	h.buffer = append(h.buffer, ev)
	if len(h.buffer) > h.cfg.BufferSize {
		h.buffer = h.buffer[len(h.buffer)-h.cfg.BufferSize:]
	}
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.wants(ev) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.events <- ev:
		default:
			h.mu.Lock()
			h.dropped++
			h.mu.Unlock()
			h.log.Debugf("client %s queue full, dropped event %d", c.id, ev.ID)
		}
	}
	return nil
}

// Subscribe streams events to w until ctx ends or the hub stops.
//
// The optional "types" query parameter restricts the stream to a comma
// separated list of event types. A Last-Event-ID header replays buffered
// events newer than that ID.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastID int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastID = id
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := &client{
		id:     uuid.NewString(),
		w:      w,
		types:  parseTypes(r.URL.Query().Get("types")),
		events: make(chan Event, h.cfg.ClientQueue),
		cancel: cancel,
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStopped
	}
	var replay []Event
	if lastID > 0 {
		for _, ev := range h.buffer {
			if ev.ID > lastID && c.wants(ev) {
				replay = append(replay, ev)
			}
		}
	}
	h.clients[c.id] = c
	if len(h.clients) == 1 {
		h.startHeartbeat()
	}
	h.mu.Unlock()
	defer h.unregister(c.id)

	h.log.Debugf("client %s subscribed (last id %d, %d replayed)", c.id, lastID, len(replay))

	ready := Event{Type: TypeReady, Data: map[string]interface{}{}}
	if h.cfg.Snapshot != nil {
		ready.Data = h.cfg.Snapshot()
	}
	if err := c.send(ready); err != nil {
		return fmt.Errorf("failed to send ready event: %w", err)
	}
	for _, ev := range replay {
		if err := c.send(ev); err != nil {
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev := <-c.events:
			if ev.ID <= lastID {
				continue
			}
			if err := c.send(ev); err != nil {
				return err
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many client deliveries were skipped on full queues.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// LastID returns the ID of the most recent event.
func (h *Hub) LastID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastID
}

// Stop disconnects all clients. It is safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.done)
	for _, c := range h.clients {
		c.cancel()
	}
	h.stopHeartbeatLocked()
	h.mu.Unlock()

	h.heartbeat.Wait()
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; !ok {
		return
	}
	delete(h.clients, id)
	if len(h.clients) == 0 {
		h.stopHeartbeatLocked()
	}
	h.log.Debugf("client %s unsubscribed", id)
}

// startHeartbeat requires h.mu.
func (h *Hub) startHeartbeat() {
	if h.cfg.HeartbeatInterval <= 0 || h.stopBeat != nil {
		return
	}
	stop := make(chan struct{})
	h.stopBeat = stop
	h.heartbeat.Add(1)
	go func() {
		defer h.heartbeat.Done()
		ticker := time.NewTicker(h.cfg.HeartbeatInterval)
		defer ticker.Stop()
		var n uint64
		for {
			select {
			case now := <-ticker.C:
				n++
				_ = h.Publish(HeartbeatEvent(n, now))
			case <-stop:
				return
			}
		}
	}()
}

// stopHeartbeatLocked requires h.mu.
func (h *Hub) stopHeartbeatLocked() {
	if h.stopBeat != nil {
		close(h.stopBeat)
		h.stopBeat = nil
	}
}

func (c *client) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if ev.ID > 0 {
		if _, err := fmt.Fprintf(c.w, "id: %d\n", ev.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func parseTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	types := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}
	return types
}
