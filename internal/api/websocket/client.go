package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenSCLCore/internal/auth"
	"github.com/KevinKickass/OpenSCLCore/internal/scl"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the auth message
	authWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Send channel buffer size
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	// Set once the auth message was accepted and the hub owns send
	registered  bool
	username    string
	permissions []auth.Permission
}

type authRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

func (c *Client) remoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		if c.registered {
			select {
			case c.hub.unregister <- c:
			case <-c.hub.done:
			}
		} else {
			// writePump flushes pending replies and closes the connection
			close(c.send)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(authWait))

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.remoteAddr()))
			}
			return
		}

		// First message MUST be authentication
		if !c.registered {
			if !c.authenticate(raw) {
				return
			}
			continue
		}

		c.handleMessage(raw)
	}
}

func (c *Client) authenticate(raw []byte) bool {
	var req authRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Type != "auth" {
		c.sendAuthFailed("First message must be authentication")
		return false
	}
	if req.Token == "" {
		c.sendAuthFailed("Missing token in auth message")
		return false
	}

	claims, permissions, err := c.hub.tokens.ValidateToken(req.Token)
	if err != nil {
		c.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remote_addr", c.remoteAddr()))
		c.sendAuthFailed("Invalid or expired token")
		return false
	}

	c.username = claims.Username
	c.permissions = permissions
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Queued before registration, the hub takes over send afterwards
	c.queue(NewMessage(MessageTypeAuthSuccess, map[string]any{
		"username":    claims.Username,
		"permissions": permissions,
	}))
	if c.hub.statusProvider != nil {
		c.queue(NewMessage(MessageTypeSystemStatus, c.hub.statusProvider.GetCurrentStatus()))
	}

	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		return false
	}
	c.registered = true

	c.logger.Info("WebSocket client authenticated",
		zap.String("remote_addr", c.remoteAddr()),
		zap.String("username", claims.Username),
		zap.Any("permissions", permissions))
	return true
}

// queue writes to send directly. Only valid before registration.
func (c *Client) queue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendAuthFailed(reason string) {
	c.queue(NewMessage(MessageTypeAuthFailed, ErrorData{Reason: reason}))
}

func (c *Client) reply(msg Message) {
	c.hub.sendTo(c, msg)
}

func (c *Client) handleMessage(raw []byte) {
	req, err := c.hub.validator.ValidateEvent(raw)
	if err != nil {
		c.logger.Debug("Rejected client message",
			zap.String("remote_addr", c.remoteAddr()),
			zap.Error(err))
		c.reply(NewErrorMessage(err.Error()))
		return
	}

	required := auth.PermRead
	if req.Event == scl.EventSubscriptionChanged {
		required = auth.PermWrite
	}
	if !auth.HasPermission(c.permissions, required) {
		c.reply(NewErrorMessage("insufficient permissions for " + string(req.Event)))
		return
	}

	event, err := c.hub.resolver.Event(req.DocumentID, req.Event, req.Control, req.Fcda, req.ExtRef)
	if err != nil {
		c.reply(NewErrorMessage(err.Error()))
		return
	}

	c.logger.Debug("Editor event received",
		zap.String("event", string(req.Event)),
		zap.String("document_id", req.DocumentID.String()),
		zap.String("username", c.username))

	c.hub.Broadcast(NewEditorEventMessage(req.DocumentID, c.username, event))

	if req.Event == scl.EventFcdaSelect && req.Control != "" && req.Fcda != "" {
		c.replySubscribedExtRefs(req)
	}
}

func (c *Client) replySubscribedExtRefs(req *EventRequest) {
	laterBinding := c.hub.includeLaterBinding
	if req.LaterBinding != nil {
		laterBinding = *req.LaterBinding
	}

	extRefs, err := c.hub.resolver.SubscribedExtRefs(req.DocumentID, req.Fcda, req.Control, laterBinding)
	if err != nil {
		c.reply(NewErrorMessage(err.Error()))
		return
	}

	c.reply(NewMessage(MessageTypeSubscribedExtRefs, SubscribedExtRefsData{
		DocumentID:   req.DocumentID,
		Control:      req.Control,
		Fcda:         req.Fcda,
		LaterBinding: laterBinding,
		ExtRefs:      extRefs,
	}))
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles WebSocket upgrade requests. Clients join the hub after
// their auth message was accepted.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger,
	}

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}
