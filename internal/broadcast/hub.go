// FilePath: internal/broadcast/hub.go

// Package broadcast fans domain events out to websocket clients grouped
// into rooms. Producers hand over pre-serialized payloads; delivery is
// asynchronous with no acknowledgement or retry.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	nuts "github.com/vaudience/go-nuts"
)

type delivery struct {
	event   string
	payload []byte
	rooms   []string
}

// Hub tracks connected clients and their room memberships, and drains the
// bounded outbound queue. Membership mutations come from client goroutines;
// delivery runs on the hub's own loop.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	clients  map[*Client]struct{}
	outbound chan delivery
}

func NewHub(queueSize int) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
		outbound: make(chan delivery, queueSize),
	}
}

// Run drains the outbound queue until the context is cancelled. Pending
// deliveries are dropped on shutdown.
func (h *Hub) Run(ctx context.Context) {
	nuts.L.Infof("[Hub] Broadcast loop started")
	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Hub] Broadcast loop stopped")
			return
		case d := <-h.outbound:
			h.deliver(d)
		}
	}
}

// Publish queues one event for the given rooms. Fire-and-forget: when the
// queue is full the event is dropped and logged, the caller is never
// blocked.
func (h *Hub) Publish(event string, payload []byte, rooms ...string) {
	select {
	case h.outbound <- delivery{event: event, payload: payload, rooms: rooms}:
	default:
		nuts.L.Warnf("[Hub] Outbound queue full, dropping %s event for rooms %v", event, rooms)
	}
}

func (h *Hub) deliver(d delivery) {
	frame, err := marshalFrame(d.event, json.RawMessage(d.payload))
	if err != nil {
		nuts.L.Errorf("[Hub] Failed to frame %s event: %v", d.event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, room := range d.rooms {
		members := h.rooms[room]
		if len(members) == 0 {
			nuts.L.Debugf("[Hub] No subscribers in room %s for %s event", room, d.event)
			continue
		}
		for client := range members {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			select {
			case client.send <- frame:
			default:
				nuts.L.Warnf("[Hub] Client %s send buffer full, dropping %s event", client.ID(), d.event)
			}
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister removes the client from every room and closes its send
// channel. Safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize reports the current number of members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount reports the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
