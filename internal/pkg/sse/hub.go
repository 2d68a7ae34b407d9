package sse

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Event is one server-sent event
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one subscribed connection
type Client struct {
	ID       string
	Resource string // e.g. upload:<id>
	Channel  chan Event
}

// NewClient returns a client with a buffered channel
func NewClient(id, resource string, buffer int) *Client {
	return &Client{ID: id, Resource: resource, Channel: make(chan Event, buffer)}
}

// Hub fans events out to the clients subscribed to a resource. The last
// event of each resource is kept for replayTTL so that a client subscribing
// after the fact still learns the latest state.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	last    *ttlcache.Cache[string, Event]
	running atomic.Bool
}

// NewHub creates a hub
func NewHub(replayTTL time.Duration) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		last: ttlcache.New[string, Event](
			ttlcache.WithTTL[string, Event](replayTTL),
			ttlcache.WithDisableTouchOnHit[string, Event](),
		),
	}
}

// Start evicts expired replay entries in the background until Stop
func (h *Hub) Start() {
	if h.running.CompareAndSwap(false, true) {
		go h.last.Start()
	}
}

func (h *Hub) Stop() {
	if h.running.CompareAndSwap(true, false) {
		h.last.Stop()
	}
}

// Register subscribes client and replays the resource's last event
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Resource] == nil {
		h.clients[client.Resource] = make(map[*Client]struct{})
	}
	h.clients[client.Resource][client] = struct{}{}

	if item := h.last.Get(client.Resource); item != nil {
		select {
		case client.Channel <- item.Value():
		default:
		}
	}
}

// Unregister removes client and closes its channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.Resource]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	close(client.Channel)
	if len(clients) == 0 {
		delete(h.clients, client.Resource)
	}
}

// Broadcast sends event to every subscriber of resource. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Broadcast(resource string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.last.Set(resource, event, ttlcache.DefaultTTL)

	for client := range h.clients[resource] {
		select {
		case client.Channel <- event:
		default:
		}
	}
}

// ClientCount returns the number of subscribers of resource
func (h *Hub) ClientCount(resource string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[resource])
}

// FormatSSE renders the event in text/event-stream framing. Map payloads
// get the event type merged in; anything else is nested under "payload".
func (e Event) FormatSSE() string {
	body := map[string]interface{}{"type": e.Type}
	switch d := e.Data.(type) {
	case map[string]interface{}:
		for k, v := range d {
			body[k] = v
		}
	case nil:
	default:
		body["payload"] = d
	}

	data, _ := json.Marshal(body)
	return "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}
