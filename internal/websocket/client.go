package websocket

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту
	writeWait = 10 * time.Second

	// Время ожидания pong-ответа; короткое для быстрого обнаружения отключений
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Размер буфера исходящих сообщений клиента по умолчанию
	defaultClientBufferSize = 128
)

// Client является посредником между WebSocket-соединением и хабом
type Client struct {
	// ID аккаунта
	UserID uint

	// Уникальный ID соединения
	ConnectionID string

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// Флаг закрытия канала send (защита от panic при двойном закрытии)
	sendClosed atomic.Bool

	// ID раунда, на комнату которого подписан клиент; 0 — без подписки
	currentRoundID atomic.Uint32
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = defaultClientBufferSize
	}
	return &Client{
		UserID:       userID,
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, bufferSize),
	}
}

// RoundID возвращает ID раунда текущей подписки клиента
func (c *Client) RoundID() uint {
	return uint(c.currentRoundID.Load())
}

func (c *Client) setRoundID(roundID uint) {
	c.currentRoundID.Store(uint32(roundID))
}

// enqueue ставит сообщение в очередь отправки. При переполненном буфере
// сообщение отбрасывается: медленный клиент сверяется с состоянием по REST.
func (c *Client) enqueue(message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		log.Printf("[WebSocketClient] Буфер клиента user=%d conn=%s переполнен, сообщение отброшено",
			c.UserID, c.ConnectionID)
		return false
	}
}

// closeSend закрывает канал отправки ровно один раз
func (c *Client) closeSend() {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
	}
}

// ReadPump читает сообщения из WebSocket-соединения и передает их менеджеру.
// Запускается одной горутиной на соединение.
func (c *Client) ReadPump(manager *Manager) {
	defer func() {
		manager.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[WebSocketClient] Неожиданное закрытие user=%d: %v", c.UserID, err)
			}
			return
		}
		if err := manager.HandleMessage(message, c); err != nil {
			log.Printf("[WebSocketClient] Фатальная ошибка обработки сообщения user=%d: %v", c.UserID, err)
			return
		}
	}
}

// WritePump пишет сообщения из канала send в WebSocket-соединение
// и поддерживает соединение ping-сообщениями.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
