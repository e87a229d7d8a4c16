package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/bus"

	"github.com/redis/go-redis/v9"
)

type Hub struct {
	// Registered clients map: SessionKey -> List of Clients (multi-tab)
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionKey] = append(h.clients[client.SessionKey], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_key": client.SessionKey})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionKey]; ok {
				for i, c := range clients {
					if c == client {
						// Remove from slice
						h.clients[client.SessionKey] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionKey]) == 0 {
					delete(h.clients, client.SessionKey)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"session_key": client.SessionKey})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to ALL connected clients, regardless of session.
// Used for system-wide announcements such as a finished ranking run.
func (h *Hub) Broadcast(event bus.Event) {
	data, _ := json.Marshal(event)

	h.mu.RLock()
	for _, clients := range h.clients {
		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
				close(client.Send)
				h.unregister <- client
			}
		}
	}
	h.mu.RUnlock()

	// Publish to Redis for other instances
	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_session": "*", // Wildcard for broadcast
			"message":        json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), "cluster_events", jsonPayload)
	}
}

// Send mirrors a session event to every socket watching that session.
func (h *Hub) Send(sessionKey string, event bus.Event) {
	data, _ := json.Marshal(event)

	h.mu.RLock()
	clients, localFound := h.clients[sessionKey]
	h.mu.RUnlock()

	if localFound {
		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
				h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{"session_key": sessionKey})
				close(client.Send)
				h.unregister <- client
			}
		}
	}

	// Always publish for multi-instance delivery.
	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_session": sessionKey,
			"message":        json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), "cluster_events", jsonPayload)
	}
}

func (h *Hub) subscribeToRedis() {
	// All instances subscribe to "cluster_events" and deliver a message only
	// when the target session is registered locally.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetSession string          `json:"target_session"`
			Message       json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		if payload.TargetSession == "*" {
			h.mu.RLock()
			for _, clients := range h.clients {
				for _, client := range clients {
					select {
					case client.Send <- payload.Message:
					default:
						close(client.Send)
						h.unregister <- client
					}
				}
			}
			h.mu.RUnlock()
			continue
		}

		h.mu.RLock()
		clients, ok := h.clients[payload.TargetSession]
		h.mu.RUnlock()

		if ok {
			for _, client := range clients {
				select {
				case client.Send <- payload.Message:
				default:
					close(client.Send)
					h.unregister <- client
				}
			}
		}
	}
}
