package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/agrovoz/agromarket-backend/internal/goroutine"
	"github.com/agrovoz/agromarket-backend/internal/logger"
)

// Hub управляет всеми WebSocket клиентами чата.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
}

type envelope struct {
	userID  uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendToUsers отправляет полезную нагрузку каждому из перечисленных пользователей.
// Сообщение клиенту следует контракту WebSocket API: поле "type" содержит
// имя события, "data" — полезную нагрузку.
func (h *Hub) SendToUsers(userIDs []uuid.UUID, payload interface{}) {
	raw, err := json.Marshal(map[string]interface{}{
		"type": "message",
		"data": payload,
	})
	if err != nil {
		logger.WithComponent("ws").WithField("error", err.Error()).Warn("не удалось сериализовать сообщение")
		return
	}

	for _, userID := range userIDs {
		h.broadcast <- envelope{userID: userID, payload: raw}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// Буфер клиента переполнен, закрываем соединение вне цикла
			c := client
			goroutine.SafeGo(func() {
				c.Close()
			})
		}
	}
}
