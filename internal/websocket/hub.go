package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fraudwatch/server/internal/audio"
	"github.com/fraudwatch/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Ceiling on bytes buffered per session before the final frame.
	maxStreamBytes = 8 * 1024 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients.
type Hub struct {
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	service *usecase.AnalysisService
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(service *usecase.AnalysisService, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		service:    service,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.Int64("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.Int64("userID", client.userID))
		}
	}
}

type WriteData struct {
	// Type is the websocket message type, websocket.TextMessage or
	// websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Authenticated principal for this connection.
	userID int64

	logger *zap.Logger

	// Accumulated audio bytes per session, flushed on the final frame.
	streams map[string][]byte

	mutex sync.Mutex
}

// HandleWebSocketWithAuth upgrades the connection for a pre-authenticated
// user and starts the read/write pumps.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, userID int64, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, 256),
		userID:  userID,
		logger:  logger,
		streams: make(map[string][]byte),
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text message", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processMessage handles one inbound frame.
func (c *Client) processMessage(message []byte) {
	msg, err := ParseAudioChunk(message)
	if err != nil {
		c.logger.Warn("Rejected websocket frame", zap.Error(err))
		c.sendError("invalid_frame", err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		c.sendError("invalid_audio_data", "audio_data must be base64 encoded")
		return
	}

	c.mutex.Lock()
	buffered := c.streams[msg.SessionID]
	if len(buffered)+len(data) > maxStreamBytes {
		c.mutex.Unlock()
		c.sendError("stream_too_large", "audio stream exceeds the size limit")
		return
	}
	buffered = append(buffered, data...)
	c.streams[msg.SessionID] = buffered
	c.mutex.Unlock()

	if !msg.IsFinal {
		return
	}

	c.mutex.Lock()
	delete(c.streams, msg.SessionID)
	c.mutex.Unlock()

	c.analyzeStream(msg.SessionID, buffered)
}

// analyzeStream runs the pipeline over the completed stream and emits the
// single result message.
func (c *Client) analyzeStream(sessionID string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := c.hub.service.AnalyzeStream(ctx, data, sessionID, c.userID)
	if err != nil {
		c.logger.Error("Stream analysis failed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		if errors.Is(err, audio.ErrInvalidFormat) {
			c.sendError("invalid_format", "El archivo no es un WAV válido.")
		} else {
			c.sendError("analysis_failed", "analysis failed")
		}
		return
	}

	c.sendJSON(AnalysisResultMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeAnalysisResult,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID:  result.SessionID,
		Transcript: result.Transcript,
		Result:     result.Result,
		RiskScore:  result.RiskScore,
	})
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	})
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping message: send buffer full", zap.Int64("userID", c.userID))
	}
}
