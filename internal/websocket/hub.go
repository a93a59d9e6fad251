package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Hub поддерживает множество активных клиентов, рассылает сообщения и
// ведет комнаты раундов: подписчик входит в комнату явным сообщением
// round.subscribe и получает события только своего раунда.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Индекс клиентов по ID аккаунта; у одного аккаунта может быть
	// несколько соединений (вкладки, устройства)
	userClients map[uint]map[*Client]bool

	// Комнаты раундов: roundID -> подписанные клиенты
	rooms map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub создает новый хаб
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[uint]map[*Client]bool),
		rooms:       make(map[uint]map[*Client]bool),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		broadcast:   make(chan []byte, 256),
	}
}

// Run обрабатывает регистрацию, отключение и широковещательные сообщения.
// Запускается одной горутиной на процесс.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.enqueue(message)
			}
			h.mu.RUnlock()
		}
	}
}

// Register ставит клиента в очередь регистрации
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	log.Printf("[WebSocketHub] Клиент подключен: user=%d conn=%s (всего %d)",
		client.UserID, client.ConnectionID, len(h.clients))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if conns := h.userClients[client.UserID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	for roundID, room := range h.rooms {
		if room[client] {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roundID)
			}
		}
	}
	client.closeSend()
	log.Printf("[WebSocketHub] Клиент отключен: user=%d conn=%s (всего %d)",
		client.UserID, client.ConnectionID, len(h.clients))
}

// BroadcastJSON отправляет структуру JSON всем клиентам
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}
	h.BroadcastBytes(data)
	return nil
}

// BroadcastBytes отправляет байтовое сообщение всем клиентам
func (h *Hub) BroadcastBytes(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WebSocketHub] Канал broadcast переполнен, сообщение отброшено")
	}
}

// SendJSONToUser отправляет структуру JSON всем соединениям аккаунта
func (h *Hub) SendJSONToUser(userID uint, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for user %d: %w", userID, err)
	}
	h.SendToUser(userID, data)
	return nil
}

// SendToUser отправляет байтовое сообщение аккаунту.
// Возвращает true, если хотя бы одно соединение приняло сообщение.
func (h *Hub) SendToUser(userID uint, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := false
	for client := range h.userClients[userID] {
		if client.enqueue(message) {
			sent = true
		}
	}
	return sent
}

// BroadcastToRound отправляет байтовое сообщение в комнату раунда
func (h *Hub) BroadcastToRound(roundID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roundID] {
		client.enqueue(message)
	}
}

// SubscribeToRound вводит клиента в комнату раунда.
// Клиент состоит не более чем в одной комнате; предыдущая подписка снимается.
func (h *Hub) SubscribeToRound(client *Client, roundID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := client.RoundID(); prev != 0 && prev != roundID {
		if room := h.rooms[prev]; room != nil {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, prev)
			}
		}
	}
	if h.rooms[roundID] == nil {
		h.rooms[roundID] = make(map[*Client]bool)
	}
	h.rooms[roundID][client] = true
	client.setRoundID(roundID)
	log.Printf("[WebSocketHub] Клиент user=%d вошел в комнату раунда #%d", client.UserID, roundID)
}

// UnsubscribeFromRound выводит клиента из его комнаты раунда
func (h *Hub) UnsubscribeFromRound(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roundID := client.RoundID()
	if roundID == 0 {
		return
	}
	if room := h.rooms[roundID]; room != nil {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roundID)
		}
	}
	client.setRoundID(0)
	log.Printf("[WebSocketHub] Клиент user=%d покинул комнату раунда #%d", client.UserID, roundID)
}

// RoomIDs возвращает ID раундов с непустыми комнатами
func (h *Hub) RoomIDs() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// RoomSize возвращает число подписчиков комнаты раунда
func (h *Hub) RoomSize(roundID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roundID])
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetMetrics возвращает метрики хаба
func (h *Hub) GetMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"client_count": len(h.clients),
		"user_count":   len(h.userClients),
		"room_count":   len(h.rooms),
	}
}
