package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/tracker"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the project feed
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeSnapshot  = "projects"
	MsgTypeProject   = "project"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

const (
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 32
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan WSMessage
}

// ProjectHub pushes every refreshed project to connected clients. Clients
// merge the pushed project into their list by id.
type ProjectHub struct {
	tracker        *tracker.Tracker
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	maxMessageSize int64

	mu          sync.Mutex
	clients     map[*wsClient]struct{}
	unsubscribe func()
}

// NewProjectHub creates a hub fed by t.
func NewProjectHub(t *tracker.Tracker, logger *zap.Logger, maxMessageSize int64) *ProjectHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ProjectHub{
		tracker:        t,
		logger:         logger,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		clients: make(map[*wsClient]struct{}),
	}
	h.unsubscribe = t.Subscribe(h.broadcast)
	return h
}

// HandleWebSocket upgrades the connection and streams project updates
func (h *ProjectHub) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	if h.maxMessageSize > 0 {
		ws.SetReadLimit(h.maxMessageSize)
	}

	client := &wsClient{conn: ws, send: make(chan WSMessage, wsSendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("remote", c.RealIP()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(client)
	}()

	h.trySend(client, WSMessage{Type: MsgTypeConnected, Timestamp: time.Now().UnixMilli()})
	h.trySend(client, newMessage(MsgTypeSnapshot, "", h.tracker.Projects()))

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket connection error", zap.Error(err))
			}
			break
		}
		switch msg.Type {
		case MsgTypePing:
			h.trySend(client, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		default:
			h.trySend(client, newMessage(MsgTypeError, msg.ID, WSErrorResponse{
				Message: "Unknown message type: " + msg.Type,
				Code:    "INVALID_TYPE",
			}))
		}
	}

	h.remove(client)
	<-done
	h.logger.Debug("websocket client disconnected")
	return nil
}

// Close stops the feed and disconnects every client.
func (h *ProjectHub) Close() {
	h.unsubscribe()
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.remove(client)
		client.conn.Close()
	}
}

// Clients returns the number of connected clients.
func (h *ProjectHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ProjectHub) broadcast(p models.Project) {
	msg := newMessage(MsgTypeProject, p.ID, p)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// slow consumer; it catches up with the next snapshot on reconnect
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("dropping slow websocket client")
		}
	}
}

func (h *ProjectHub) trySend(client *wsClient, msg WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

// remove unregisters client and ends its write loop.
func (h *ProjectHub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *ProjectHub) writeLoop(client *wsClient) {
	for msg := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := client.conn.WriteJSON(msg); err != nil {
			h.logger.Warn("failed to send websocket message", zap.Error(err))
			client.conn.Close()
			// drained until remove closes the channel
			for range client.send {
			}
			return
		}
	}
	client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	client.conn.Close()
}

func newMessage(msgType, id string, payload any) WSMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return WSMessage{
		Type:      msgType,
		ID:        id,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}
}
