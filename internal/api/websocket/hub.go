package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/KevinKickass/OpenSCLCore/internal/auth"
	"github.com/KevinKickass/OpenSCLCore/internal/config"
	"github.com/KevinKickass/OpenSCLCore/internal/interfaces"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenValidator authenticates the first message of a connection.
type TokenValidator interface {
	ValidateToken(token string) (*auth.JWTClaims, []auth.Permission, error)
}

// EventResolver turns the selectors of an inbound editor event into elements.
type EventResolver interface {
	Event(docID uuid.UUID, typ scl.EventType, controlSel, fcdaSel, extRefSel string) (scl.Event, error)
	SubscribedExtRefs(docID uuid.UUID, fcdaSel, controlSel string, laterBinding bool) ([]*scl.ElementRef, error)
}

// StatusProvider reports the system status sent to freshly authenticated clients.
type StatusProvider interface {
	GetCurrentStatus() interfaces.SystemStatus
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains active WebSocket clients and broadcasts messages
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Replies addressed to a single client
	direct chan directMessage

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger

	tokens    TokenValidator
	resolver  EventResolver
	validator *Validator

	includeLaterBinding bool

	// Optional
	statusProvider StatusProvider
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger, tokens TokenValidator, resolver EventResolver, cfg config.EventsConfig) (*Hub, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create event validator: %w", err)
	}

	buffer := cfg.BroadcastBuffer
	if buffer <= 0 {
		buffer = 256
	}

	return &Hub{
		broadcast:           make(chan Message, buffer),
		direct:              make(chan directMessage, buffer),
		register:            make(chan *Client),
		unregister:          make(chan *Client),
		done:                make(chan struct{}),
		clients:             make(map[*Client]bool),
		logger:              logger,
		tokens:              tokens,
		resolver:            resolver,
		validator:           validator,
		includeLaterBinding: cfg.IncludeLaterBinding,
	}, nil
}

// ValidateEvent applies the editor event schema to req.
func (h *Hub) ValidateEvent(req EventRequest) error {
	return h.validator.Validate(req)
}

func (h *Hub) SetStatusProvider(provider StatusProvider) {
	h.statusProvider = provider
}

// Run starts the hub's main event loop. It returns when ctx is cancelled
// after disconnecting all clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket Hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client registered",
				zap.String("remote_addr", client.remoteAddr()),
				zap.String("username", client.username),
				zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("WebSocket client unregistered",
					zap.String("remote_addr", client.remoteAddr()),
					zap.Int("total_clients", len(h.clients)))
			}
			h.mu.Unlock()

		case msg := <-h.direct:
			h.mu.Lock()
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.data)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("Failed to marshal broadcast message",
					zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				h.deliver(client, data)
			}
			h.mu.Unlock()
		}
	}
}

// deliver must be called with mu held.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Client send channel full - unregister slow/dead client
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn("Client send buffer full, unregistering",
			zap.String("remote_addr", client.remoteAddr()))
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Hub broadcast channel full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// PublishEvent broadcasts an editor event that originated outside a
// WebSocket connection, e.g. from the REST API.
func (h *Hub) PublishEvent(docID uuid.UUID, sender string, event scl.Event) {
	h.Broadcast(NewEditorEventMessage(docID, sender, event))
}

func (h *Hub) sendTo(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.done:
	default:
		h.logger.Warn("Hub direct channel full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
