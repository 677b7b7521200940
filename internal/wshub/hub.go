// Package wshub fans broadcast messages out to the WebSocket viewers of
// each room. Sends are fire-and-forget; a slow receiver is dropped from
// the send path rather than allowed to block the room's tick.
package wshub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/coder/websocket"
)

// Client represents a single WebSocket connection subscribed to a room.
type Client struct {
	ViewerID string
	RoomCode string
	Conn     *websocket.Conn
	Send     chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket
// connection until the context ends or the channel closes.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub manages per-room WebSocket connections.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*Client),
	}
}

// Register adds a client to its room's subscriber set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.RoomCode]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[c.RoomCode] = room
	}
	room[c.ViewerID] = c
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(roomCode, viewerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	if c, ok := room[viewerID]; ok {
		close(c.Send)
		delete(room, viewerID)
	}
	if len(room) == 0 {
		delete(h.rooms, roomCode)
	}
}

// Broadcast sends a message to every subscriber of a room. Non-blocking:
// drops for a client whose channel is full.
func (h *Hub) Broadcast(roomCode string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WSHub] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[roomCode] {
		select {
		case c.Send <- data:
		default:
			// Drop message if channel full
		}
	}
}

// BroadcastExcept sends to every subscriber of a room but the sender.
func (h *Hub) BroadcastExcept(roomCode, senderID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WSHub] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.rooms[roomCode] {
		if id == senderID {
			continue
		}
		select {
		case c.Send <- data:
		default:
		}
	}
}

// SubscriberCount reports how many viewers a room has connected.
func (h *Hub) SubscriberCount(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}
