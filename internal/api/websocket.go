package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/project-optimizer/console/internal/models"
)

// WebSocket message types for the progress stream
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeSnapshot  = "snapshot"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error frame.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes a session snapshot to connected clients on every
// state change.
type WebSocketHandler struct {
	session  SessionController
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new progress stream handler
func NewWebSocketHandler(s SessionController, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		session: s,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		logger: logger.With("component", "websocket"),
	}
}

// HandleWebSocket upgrades the connection and streams snapshots until the
// client goes away.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	updates, unsubscribe := wsh.session.Subscribe()
	defer unsubscribe()

	wsh.logger.Debug("client connected", "remote", c.RealIP())

	// gorilla connections allow one concurrent writer, so the reader hands
	// its replies to this goroutine.
	replies := make(chan WSMessage, 4)
	closed := make(chan struct{})
	go wsh.readLoop(ws, replies, closed)

	if !wsh.send(ws, WSMessage{Type: MsgTypeConnected}) ||
		!wsh.send(ws, snapshotMessage(wsh.session.Snapshot())) {
		return nil
	}

	for {
		select {
		case <-closed:
			wsh.logger.Debug("client disconnected")
			return nil
		case msg := <-replies:
			if !wsh.send(ws, msg) {
				return nil
			}
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if !wsh.send(ws, snapshotMessage(snap)) {
				return nil
			}
		}
	}
}

func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, replies chan<- WSMessage, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.logger.Warn("connection error", "error", err)
			}
			return
		}

		var reply WSMessage
		switch msg.Type {
		case MsgTypePing:
			reply = WSMessage{Type: MsgTypePong}
		default:
			reply = WSMessage{
				Type:    MsgTypeError,
				Payload: mustJSON(WSErrorResponse{Message: "Unknown message type: " + msg.Type, Code: "INVALID_TYPE"}),
			}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msg WSMessage) bool {
	msg.Timestamp = time.Now().UnixMilli()
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := ws.WriteJSON(msg); err != nil {
		wsh.logger.Debug("failed to send message", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func snapshotMessage(s models.Snapshot) WSMessage {
	return WSMessage{Type: MsgTypeSnapshot, Payload: mustJSON(s)}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
