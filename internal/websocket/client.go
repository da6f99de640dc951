package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/internal/metrics"
	"github.com/satriahrh/wajah/usecase"
)

const (
	intentBuffer   = 16
	intentTimeout  = 10 * time.Second
	errorCodeBusy  = "busy"
	directionIn    = "in"
	directionOut   = "out"
	binaryFrameTag = "binary"
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the
// conversation of one face. It is the conversation's presenter and media
// devices.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Device ID for this client
	deviceID string

	logger *zap.Logger

	validator    *MessageValidator
	media        *mediaDevices
	conversation *usecase.ConversationService
	intents      chan interface{}
	cancel       context.CancelFunc

	mu          sync.Mutex
	closed      bool
	activeSince time.Time
}

var _ usecase.Presenter = (*Client)(nil)

func newClient(hub *Hub, conn *websocket.Conn, deviceID string, logger *zap.Logger) *Client {
	logger = logger.With(zap.String("deviceID", deviceID))
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBuffer),
		deviceID:  deviceID,
		logger:    logger,
		validator: NewMessageValidator(),
		intents:   make(chan interface{}, intentBuffer),
	}
	c.media = newMediaDevices(c, hub.config.MediaTimeout, logger)
	c.conversation = hub.newConversation(deviceID, c.media, c)
	return c
}

// start runs the conversation and both pumps. The conversation lives as long
// as the connection.
func (c *Client) start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go c.conversation.Run(ctx)
	go c.intentPump(ctx)
	go c.writePump()
	go c.readPump()
}

// readPump pumps messages from the websocket connection to the conversation.
func (c *Client) readPump() {
	defer func() {
		c.media.shutdown()
		c.cancel()
		c.hub.remove(c)
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

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the conversation to the websocket connection.
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

// processMessage handles one JSON message. Media responses are resolved here
// so that a pending capture request never waits behind an intent.
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Debug("Rejected message", zap.Error(err))
		metrics.WebsocketMessages.WithLabelValues(directionIn, "invalid").Inc()
		c.sendJSON(MessageTypeError, CreateErrorMessage(usecase.ErrorCodeInvalidRequest, err.Error(), false))
		return
	}

	switch m := msg.(type) {
	case *MediaResponseMessage:
		metrics.WebsocketMessages.WithLabelValues(directionIn, string(m.Type)).Inc()
		if !c.media.resolve(m) {
			c.logger.Debug("Media response for unknown request", zap.String("requestID", m.RequestID))
		}
	case *PingMessage:
		metrics.WebsocketMessages.WithLabelValues(directionIn, string(m.Type)).Inc()
		c.sendJSON(MessageTypePong, CreatePongMessage(m.Data))
	default:
		select {
		case c.intents <- msg:
		default:
			c.logger.Warn("Intent queue full, dropping message")
			c.sendJSON(MessageTypeError, CreateErrorMessage(errorCodeBusy, "too many pending requests", true))
		}
	}
}

// intentPump applies intents in arrival order
func (c *Client) intentPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.intents:
			c.handleIntent(ctx, msg)
		}
	}
}

func (c *Client) handleIntent(ctx context.Context, msg interface{}) {
	ctx, cancel := context.WithTimeout(ctx, intentTimeout)
	defer cancel()

	var (
		msgType MessageType
		err     error
	)
	switch m := msg.(type) {
	case *WakeMessage:
		msgType = m.Type
		err = c.conversation.Wake()
	case *SleepMessage:
		msgType = m.Type
		c.conversation.Sleep()
	case *TouchMessage:
		msgType = m.Type
		c.conversation.Touch(m.Region)
	case *SetThresholdMessage:
		msgType = m.Type
		err = c.conversation.SetThreshold(ctx, m.Threshold)
	case *SaveMoodMessage:
		msgType = m.Type
		err = c.conversation.SaveMood(ctx, m.Name, entities.CustomExpression{EyeBase: m.EyeBase, MouthBase: m.MouthBase})
	case *DeleteMoodMessage:
		msgType = m.Type
		err = c.conversation.DeleteMood(ctx, m.Name)
	default:
		return
	}
	metrics.WebsocketMessages.WithLabelValues(directionIn, string(msgType)).Inc()

	if err == nil {
		return
	}
	c.logger.Info("Intent failed", zap.String("type", string(msgType)), zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrBusy):
		c.PublishError(errorCodeBusy, err.Error(), true)
	case errors.Is(err, domain.ErrNotConnected):
		c.PublishError(usecase.ErrorCodeConnectionLost, err.Error(), false)
	default:
		c.PublishError(usecase.ErrorCodeInvalidRequest, err.Error(), false)
	}
}

// processBinaryFrame routes tagged capture data
func (c *Client) processBinaryFrame(data []byte) {
	tag, payload, err := ParseBinaryFrame(data)
	if err != nil {
		c.logger.Debug("Dropping binary frame", zap.Error(err))
		return
	}
	metrics.WebsocketMessages.WithLabelValues(directionIn, binaryFrameTag).Inc()
	c.media.handleFrame(tag, payload)
}

// sendJSON queues a message without blocking. Messages to a closed or
// saturated client are dropped.
func (c *Client) sendJSON(msgType MessageType, v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.String("type", string(msgType)), zap.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		metrics.WebsocketMessages.WithLabelValues(directionOut, string(msgType)).Inc()
		return true
	default:
		c.logger.Warn("Send queue full, dropping message", zap.String("type", string(msgType)))
		return false
	}
}

// closeSend closes the outbound queue once; the write pump then closes the
// connection.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// PublishState sends a face snapshot and tracks how long the session has
// been active.
func (c *Client) PublishState(state entities.FaceState) {
	c.mu.Lock()
	switch {
	case state.SessionState == entities.SessionStateActive && c.activeSince.IsZero():
		c.activeSince = time.Now()
	case state.SessionState != entities.SessionStateActive:
		c.activeSince = time.Time{}
	}
	c.mu.Unlock()
	c.sendJSON(MessageTypeState, CreateStateMessage(state))
}

func (c *Client) PublishTranscript(line entities.TranscriptLine) {
	c.sendJSON(MessageTypeTranscript, CreateTranscriptMessage(line))
}

func (c *Client) PublishError(code, message string, retryable bool) {
	c.sendJSON(MessageTypeError, CreateErrorMessage(code, message, retryable))
}

func (c *Client) OpenURL(url string) {
	c.sendJSON(MessageTypeOpenURL, CreateOpenURLMessage(url))
}

// ActiveFor reports how long the current session has been active
func (c *Client) ActiveFor(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeSince.IsZero() {
		return 0
	}
	return now.Sub(c.activeSince)
}
