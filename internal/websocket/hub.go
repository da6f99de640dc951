package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/metrics"
	"github.com/satriahrh/wajah/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A screen frame is the largest.
	maxMessageSize = 2 * 1024 * 1024

	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ConversationFactory builds the conversation that drives one connected face
type ConversationFactory func(deviceID string, devices repositories.MediaDevices, presenter usecase.Presenter) *usecase.ConversationService

// HubConfig tunes the hub and its clients
type HubConfig struct {
	// MediaTimeout bounds how long a media request waits for the face client
	MediaTimeout time.Duration
	// MaxSessionDuration puts a face to sleep once its session ran this
	// long. Zero disables the sweep.
	MaxSessionDuration time.Duration
	SweepInterval      time.Duration
}

// Hub maintains the set of connected faces, one per device.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	done chan struct{}

	newConversation ConversationFactory
	config          HubConfig
	logger          *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(newConversation ConversationFactory, config HubConfig, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		newConversation: newConversation,
		config:          config,
		logger:          logger,
	}
}

// Run starts the hub's main loop. When ctx is done every client is
// disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			previous := h.clients[client.deviceID]
			h.clients[client.deviceID] = client
			count := len(h.clients)
			h.mu.Unlock()
			if previous != nil && previous != client {
				h.logger.Info("Replacing face connection", zap.String("deviceID", client.deviceID))
				previous.closeSend()
			}
			metrics.ConnectedFaces.Set(float64(count))
			h.logger.Info("Client registered", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.deviceID]; ok && current == client {
				delete(h.clients, client.deviceID)
			}
			count := len(h.clients)
			h.mu.Unlock()
			client.closeSend()
			metrics.ConnectedFaces.Set(float64(count))
			h.logger.Info("Client unregistered", zap.String("deviceID", client.deviceID))

		case <-ctx.Done():
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			for _, client := range clients {
				client.closeSend()
			}
			metrics.ConnectedFaces.Set(0)
			return
		}
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Conversation returns the conversation of a connected device
func (h *Hub) Conversation(deviceID string) (*usecase.ConversationService, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[deviceID]
	if !ok {
		return nil, false
	}
	return client.conversation, true
}

// ClientCount returns the number of connected faces
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// HandleWebSocketWithAuth handles websocket requests with pre-authenticated device ID
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, deviceID, logger)
	if !hub.add(client) {
		logger.Warn("Hub is stopped, rejecting face", zap.String("deviceID", deviceID))
		conn.Close()
		return nil
	}
	client.start()
	return nil
}
