package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"learntrust-backend/internal/ledger"
	"learntrust-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans audit chain entries out to connected monitor sessions.
// Entries arrive over Redis pub/sub so monitors see appends from every
// process, not just the local one.
type Hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]uuid.UUID
	redisClient *redis.Client
	jwtSecret   []byte
	cancel      context.CancelFunc
}

func NewHub(redisClient *redis.Client, jwtSecret string) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]uuid.UUID),
		redisClient: redisClient,
		jwtSecret:   []byte(jwtSecret),
	}
}

// HandleWebSocket upgrades an audit monitor connection. Browsers cannot
// set headers on websocket dials, so the JWT rides a query param here.
// Only instructor and admin tokens are admitted.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	role, _ := claims["role"].(string)
	if role != "instructor" && role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(userID, conn)

	go func() {
		defer h.unregisterConnection(conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = userID

	// First monitor starts the shared pub/sub subscription.
	if len(h.connections) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.subscribeToPubSub(ctx)
	}

	log.Printf("Audit monitor connected: user %s (total: %d)", userID, len(h.connections))
}

func (h *Hub) unregisterConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	userID := h.connections[conn]
	delete(h.connections, conn)

	if len(h.connections) == 0 && h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	log.Printf("Audit monitor disconnected: user %s", userID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context) {
	pubsub := h.redisClient.Subscribe(ctx, ledger.PubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			data, err := monitorEnvelope([]byte(msg.Payload))
			if err != nil {
				continue
			}
			h.broadcast(data)
		}
	}
}

// monitorEnvelope wraps a published entry in the message envelope. The
// channel carries bare entry JSON, so wrapping happens exactly once,
// here.
func monitorEnvelope(entry []byte) ([]byte, error) {
	return json.Marshal(models.WSMessage{
		Type:    "audit_entry",
		Payload: json.RawMessage(entry),
	})
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// Broadcast sends a message to every connected monitor directly,
// bypassing pub/sub. Used for local incident alerts.
func (h *Hub) Broadcast(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(data)
}
