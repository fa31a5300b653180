package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/fps-visualizer/backend/internal/models"
	"github.com/fps-visualizer/backend/internal/session"
)

// WebSocket message types for the parse progress protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeProgress = "progress"
	MsgTypeComplete = "complete"
	MsgTypeError    = "error"
	MsgTypePong     = "pong"
)

// WSMessage is the envelope for all WebSocket frames
type WSMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSProgressPayload carries the session snapshot pushed to clients
type WSProgressPayload struct {
	Status      models.SessionStatus `json:"status"`
	Progress    float64              `json:"progress"`
	SampleCount int                  `json:"sampleCount"`
	CameraCount int                  `json:"cameraCount"`
}

// WSErrorPayload reports a terminal failure over the socket
type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes parse progress over WebSocket connections.
// It is an alternative to the SSE stream for clients behind proxies
// that buffer event streams.
type WebSocketHandler struct {
	sessionMgr *session.Manager
	upgrader   websocket.Upgrader
}

// wsConn wraps a connection with a write mutex. The pong reply from the
// read loop and the progress pushes share one connection, and gorilla
// allows only one concurrent writer per connection.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NewWebSocketHandler creates a new WebSocket progress handler
func NewWebSocketHandler(sessionMgr *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// HandleParseProgress upgrades the connection and pushes progress
// snapshots until the session reaches a terminal state.
func (wsh *WebSocketHandler) HandleParseProgress(c echo.Context) error {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		return NewValidationError("sessionId")
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	conn := &wsConn{ws: ws}

	fmt.Printf("[WebSocket] Client connected for session %s\n", sessionID)

	if _, ok := wsh.sessionMgr.GetSession(sessionID); !ok {
		conn.sendError(sessionID, "session not found", "SESSION_NOT_FOUND")
		return nil
	}

	// Reader goroutine: consume client frames so pings keep the
	// connection alive and closes are noticed promptly.
	done := make(chan struct{})
	go conn.readLoop(done)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-done:
			fmt.Printf("[WebSocket] Client disconnected from session %s\n", sessionID)
			return nil

		case <-ticker.C:
			sess, ok := wsh.sessionMgr.GetSession(sessionID)
			if !ok {
				conn.sendError(sessionID, "session not found", "SESSION_NOT_FOUND")
				return nil
			}
			wsh.sessionMgr.TouchSession(sessionID)

			msgType := MsgTypeProgress
			if sess.Status == models.SessionStatusComplete {
				msgType = MsgTypeComplete
			} else if sess.Status == models.SessionStatusError {
				conn.sendError(sessionID, sess.Error, "PARSE_ERROR")
				return nil
			}

			conn.send(WSMessage{
				Type:      msgType,
				SessionID: sessionID,
				Timestamp: time.Now().UnixMilli(),
				Payload: mustJSON(WSProgressPayload{
					Status:      sess.Status,
					Progress:    sess.Progress,
					SampleCount: sess.SampleCount,
					CameraCount: sess.CameraCount,
				}),
			})

			if msgType == MsgTypeComplete {
				return nil
			}

		case <-timeout.C:
			conn.sendError(sessionID, "stream timeout", "TIMEOUT")
			return nil
		}
	}
}

// readLoop answers pings and signals when the client goes away
func (conn *wsConn) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			return
		}
		if msg.Type == MsgTypePing {
			conn.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		}
	}
}

func (conn *wsConn) send(msg WSMessage) {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	if err := conn.ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (conn *wsConn) sendError(sessionID, message, code string) {
	conn.send(WSMessage{
		Type:      MsgTypeError,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorPayload{
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
