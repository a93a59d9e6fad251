package websocket

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	"github.com/yourusername/spinwheel-api/internal/service"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager обрабатывает входящие WebSocket-сообщения и публикует события
// движка раундов. Реализует service.EventPublisher.
type Manager struct {
	hub            *Hub
	cluster        *ClusterRelay
	cache          repository.CacheRepository
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *Hub) *Manager {
	m := &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
	m.registerDefaultHandlers()
	return m
}

// SetClusterRelay подключает ретрансляцию событий между процессами
func (m *Manager) SetClusterRelay(relay *ClusterRelay) {
	m.cluster = relay
}

// SetCacheRepo подключает Redis-множества подписчиков комнат: аудитория
// раунда становится видна всем процессам кластера, а не только локальному хабу
func (m *Manager) SetCacheRepo(cache repository.CacheRepository) {
	m.cache = cache
}

// Hub возвращает нижележащий хаб
func (m *Manager) Hub() *Hub {
	return m.hub
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// registerDefaultHandlers подключает обработку подписки на комнаты раундов
func (m *Manager) registerDefaultHandlers() {
	m.RegisterHandler(ROUND_SUBSCRIBE, func(data json.RawMessage, client *Client) error {
		var req struct {
			RoundID uint `json:"round_id"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.RoundID == 0 {
			m.SendErrorToClient(client, "invalid_round_id", "round_id is required")
			return nil
		}
		prevRoundID := client.RoundID()
		m.hub.SubscribeToRound(client, req.RoundID)
		m.trackSubscribe(client, prevRoundID, req.RoundID)
		return m.hub.SendJSONToUser(client.UserID, Event{
			Type: SERVER_SUBSCRIBED,
			Data: map[string]interface{}{"round_id": req.RoundID},
		})
	})

	m.RegisterHandler(ROUND_UNSUBSCRIBE, func(data json.RawMessage, client *Client) error {
		roundID := client.RoundID()
		m.hub.UnsubscribeFromRound(client)
		m.trackUnsubscribe(client, roundID)
		return nil
	})
}

// roundSubscribersKey — ключ Redis-множества подписчиков комнаты раунда
func roundSubscribersKey(roundID uint) string {
	return fmt.Sprintf("round:subscribers:%d", roundID)
}

// subscriberMember — элемент множества; квалификация соединением позволяет
// нескольким вкладкам одного аккаунта считаться раздельно
func subscriberMember(client *Client) string {
	return fmt.Sprintf("%d:%s", client.UserID, client.ConnectionID)
}

// trackSubscribe отражает смену комнаты клиента в Redis-множествах
func (m *Manager) trackSubscribe(client *Client, prevRoundID, roundID uint) {
	if m.cache == nil {
		return
	}
	member := subscriberMember(client)
	if prevRoundID != 0 && prevRoundID != roundID {
		if err := m.cache.SRem(roundSubscribersKey(prevRoundID), member); err != nil {
			log.Printf("[WebSocketManager] Ошибка снятия подписчика раунда #%d: %v", prevRoundID, err)
		}
	}
	if err := m.cache.SAdd(roundSubscribersKey(roundID), member); err != nil {
		log.Printf("[WebSocketManager] Ошибка учета подписчика раунда #%d: %v", roundID, err)
	}
}

// trackUnsubscribe снимает клиента с учета подписчиков раунда
func (m *Manager) trackUnsubscribe(client *Client, roundID uint) {
	if m.cache == nil || roundID == 0 {
		return
	}
	if err := m.cache.SRem(roundSubscribersKey(roundID), subscriberMember(client)); err != nil {
		log.Printf("[WebSocketManager] Ошибка снятия подписчика раунда #%d: %v", roundID, err)
	}
}

// Disconnect снимает отключившегося клиента с учета: сперва подписка
// в Redis, затем комнаты и индексы хаба
func (m *Manager) Disconnect(client *Client) {
	m.trackUnsubscribe(client, client.RoundID())
	m.hub.unregister <- client
}

// RoundAudience возвращает число подписанных на раунд соединений.
// С Redis значение кластерное, в деградации — локальная комната хаба.
func (m *Manager) RoundAudience(roundID uint) int {
	if m.cache != nil {
		members, err := m.cache.SMembers(roundSubscribersKey(roundID))
		if err == nil {
			return len(members)
		}
		log.Printf("[WebSocketManager] Ошибка чтения аудитории раунда #%d: %v", roundID, err)
	}
	return m.hub.RoomSize(roundID)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Невалидное сообщение от user=%d: %v", client.UserID, err)
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil // Неизвестный тип — соединение не закрываем
	}

	rawMessage, _ := json.Marshal(event.Data)
	if err := handler(rawMessage, client); err != nil {
		log.Printf("[WebSocketManager] Обработчик '%s' вернул ошибку для user=%d: %v",
			event.Type, client.UserID, err)
		return err
	}
	return nil
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке.
// Соединение не закрывается.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: SERVER_ERROR,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSONToUser(client.UserID, errorEvent); err != nil {
		log.Printf("[WebSocketManager] Ошибка отправки ошибки клиенту user=%d: %v", client.UserID, err)
	}
}

// BroadcastEvent отправляет событие всем клиентам
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	event := Event{Type: eventType, Data: data}
	if m.cluster != nil {
		if err := m.cluster.PublishBroadcast(event); err != nil {
			log.Printf("[WebSocketManager] Ошибка кластерной публикации %s: %v", eventType, err)
		}
	}
	return m.hub.BroadcastJSON(event)
}

// BroadcastToRound отправляет событие подписчикам комнаты раунда
func (m *Manager) BroadcastToRound(roundID uint, eventType string, data interface{}) error {
	event := Event{Type: eventType, Data: data}
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for round %d: %w", roundID, err)
	}
	if m.cluster != nil {
		if err := m.cluster.PublishToRound(roundID, jsonBytes); err != nil {
			log.Printf("[WebSocketManager] Ошибка кластерной публикации в раунд #%d: %v", roundID, err)
		}
	}
	m.hub.BroadcastToRound(roundID, jsonBytes)

	// Терминальное событие закрывает комнату: множество подписчиков
	// в Redis больше не нужно
	if m.cache != nil && (eventType == service.EventRoundCompleted || eventType == service.EventRoundAborted) {
		if err := m.cache.Delete(roundSubscribersKey(roundID)); err != nil {
			log.Printf("[WebSocketManager] Ошибка очистки подписчиков раунда #%d: %v", roundID, err)
		}
	}
	return nil
}

// SendEventToUser отправляет приватное событие одному аккаунту
func (m *Manager) SendEventToUser(userID uint, eventType string, data interface{}) error {
	event := Event{Type: eventType, Data: data}
	if m.cluster != nil {
		jsonBytes, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := m.cluster.PublishDirect(userID, jsonBytes); err != nil {
			log.Printf("[WebSocketManager] Ошибка кластерной отправки user=%d: %v", userID, err)
		}
	}
	return m.hub.SendJSONToUser(userID, event)
}

// GetMetrics возвращает текущие метрики WebSocket-подсистемы.
// При подключенном Redis аудитория комнат считается по кластеру.
func (m *Manager) GetMetrics() map[string]interface{} {
	metrics := m.hub.GetMetrics()
	if m.cache != nil {
		audience := make(map[uint]int)
		for _, roundID := range m.hub.RoomIDs() {
			audience[roundID] = m.RoundAudience(roundID)
		}
		metrics["round_audience"] = audience
	}
	return metrics
}
