package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSeatsClaimed  MessageType = "seats_claimed"
	MessageTypeSeatsReleased MessageType = "seats_released"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	TripID    string      `json:"tripId"`
	SeatIDs   []string    `json:"seatIds"`
	Timestamp int64       `json:"timestamp"`
}

// Hub manages WebSocket connections per trip
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.tripID] == nil {
				h.clients[client.tripID] = make(map[*Client]bool)
			}
			h.clients[client.tripID][client] = true
			log.Printf("WebSocket: client registered for trip %s (total: %d)", client.tripID, len(h.clients[client.tripID]))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.tripID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.tripID)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			tripID, err := uuid.Parse(message.TripID)
			if err != nil {
				log.Printf("WebSocket: invalid trip ID in broadcast: %s", message.TripID)
				continue
			}

			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("WebSocket: failed to marshal message: %v", err)
				continue
			}

			h.mu.RLock()
			clients := h.clients[tripID]
			h.mu.RUnlock()

			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.mu.Lock()
					delete(h.clients[tripID], client)
					close(client.send)
					h.mu.Unlock()
				}
			}
		}
	}
}

// SeatsClaimed broadcasts that seats on a trip became unavailable.
func (h *Hub) SeatsClaimed(tripID uuid.UUID, seatIDs []uuid.UUID) {
	h.broadcast <- &Message{
		Type:      MessageTypeSeatsClaimed,
		TripID:    tripID.String(),
		SeatIDs:   seatIDStrings(seatIDs),
		Timestamp: time.Now().UnixMilli(),
	}
}

// SeatsReleased broadcasts that seats on a trip became available again.
func (h *Hub) SeatsReleased(tripID uuid.UUID, seatIDs []uuid.UUID) {
	h.broadcast <- &Message{
		Type:      MessageTypeSeatsReleased,
		TripID:    tripID.String(),
		SeatIDs:   seatIDStrings(seatIDs),
		Timestamp: time.Now().UnixMilli(),
	}
}

// ClientCount returns the number of clients watching a trip
func (h *Hub) ClientCount(tripID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tripID])
}

func seatIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
