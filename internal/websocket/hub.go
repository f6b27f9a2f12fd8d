package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"libu-backend/internal/logger"
	"libu-backend/internal/models"
)

const (
	writeWait = 10 * time.Second
	// subscribeWait bounds how long a first connection waits for its subscription to be confirmed.
	subscribeWait = 5 * time.Second
)

// TokenParser resolves a bearer token to the learner it belongs to.
type TokenParser interface {
	ParseToken(tokenStr string) (uuid.UUID, error)
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Hub pushes session events to every open connection of a learner. With a Redis client
// events travel through pub/sub so any instance can deliver them; without one they are
// delivered in process.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*conn
	redisClient *redis.Client
	tokens      TokenParser
	upgrader    websocket.Upgrader
	cancelFuncs map[string]context.CancelFunc
	log         *logger.Logger
}

func NewHub(redisClient *redis.Client, tokens TokenParser, allowedOrigin string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		connections: make(map[string][]*conn),
		redisClient: redisClient,
		tokens:      tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		cancelFuncs: make(map[string]context.CancelFunc),
		log:         log,
	}
}

func channelFor(learnerID string) string {
	return "learner_updates:" + learnerID
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	learner, err := h.tokens.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	learnerID := learner.String()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "learner_id", learnerID, "error", err)
		return
	}

	c := &conn{ws: ws}
	h.registerConnection(learnerID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(learnerID, c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(learnerID string, c *conn) {
	h.mu.Lock()
	h.connections[learnerID] = append(h.connections[learnerID], c)
	count := len(h.connections[learnerID])

	// Start pub/sub subscription if this is the first connection for this learner
	var ready chan struct{}
	if h.redisClient != nil && count == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[learnerID] = cancel
		ready = make(chan struct{})
		go h.subscribeToPubSub(ctx, learnerID, ready)
	}
	h.mu.Unlock()

	if ready != nil {
		select {
		case <-ready:
		case <-time.After(subscribeWait):
			h.log.Warn("pubsub subscription still pending", "learner_id", learnerID)
		}
	}

	h.log.Debug("websocket connected", "learner_id", learnerID, "connections", count)
}

func (h *Hub) unregisterConnection(learnerID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.ws.Close()

	conns := h.connections[learnerID]
	for i, existing := range conns {
		if existing == c {
			h.connections[learnerID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[learnerID]) == 0 {
		delete(h.connections, learnerID)
		if cancel, ok := h.cancelFuncs[learnerID]; ok {
			cancel()
			delete(h.cancelFuncs, learnerID)
		}
	}

	h.log.Debug("websocket disconnected", "learner_id", learnerID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, learnerID string, ready chan<- struct{}) {
	pubsub := h.redisClient.Subscribe(ctx, channelFor(learnerID))
	defer pubsub.Close()

	// wait for the subscription to be confirmed so no event published after connect is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Warn("pubsub subscribe failed", "learner_id", learnerID, "error", err)
	}
	close(ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(learnerID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(learnerID string, data []byte) {
	h.mu.RLock()
	conns := append([]*conn(nil), h.connections[learnerID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debug("websocket write failed", "learner_id", learnerID, "error", err)
		}
	}
}

// Publish delivers msg to the learner's connections.
func (h *Hub) Publish(ctx context.Context, learnerID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if h.redisClient != nil {
		if err := h.redisClient.Publish(ctx, channelFor(learnerID), data).Err(); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		return nil
	}
	h.broadcast(learnerID, data)
	return nil
}

// ConnectionCount reports the open connections of a learner.
func (h *Hub) ConnectionCount(learnerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[learnerID])
}
