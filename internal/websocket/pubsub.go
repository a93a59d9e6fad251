package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/yourusername/spinwheel-api/internal/config"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(channel string, message []byte) error

	// Subscribe подписывается на указанный канал и возвращает канал для сообщений
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close закрывает все соединения и освобождает ресурсы
	Close() error
}

// NoOpPubSub реализует PubSubProvider для одиночного режима работы
type NoOpPubSub struct{}

func (p *NoOpPubSub) Publish(channel string, message []byte) error {
	return nil
}

func (p *NoOpPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

func (p *NoOpPubSub) Close() error {
	return nil
}

// RedisPubSub реализует PubSubProvider через Redis Pub/Sub
type RedisPubSub struct {
	client redis.UniversalClient
}

// NewRedisPubSub создает новый Redis-провайдер
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for RedisPubSub")
	}
	return &RedisPubSub{client: client}, nil
}

func (p *RedisPubSub) Publish(channel string, message []byte) error {
	return p.client.Publish(context.Background(), channel, message).Err()
}

func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := p.client.Subscribe(ctx, channel)
	// Дожидаемся подтверждения подписки
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	msgCh := make(chan []byte, 64)
	go func() {
		defer close(msgCh)
		defer sub.Close()
		redisCh := sub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				default:
					log.Printf("[RedisPubSub] Канал %s переполнен, сообщение отброшено", channel)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return msgCh, nil
}

func (p *RedisPubSub) Close() error {
	// Клиент общий для всего приложения, закрывается в main
	return nil
}

// Типы кластерных сообщений
const (
	clusterMsgBroadcast = "broadcast"
	clusterMsgRoom      = "room"
	clusterMsgDirect    = "direct"
)

// ClusterMessage представляет сообщение, передаваемое между процессами
type ClusterMessage struct {
	MessageType string `json:"type"`

	// RecipientID — ID аккаунта для direct-сообщений
	RecipientID uint `json:"recipient_id,omitempty"`

	// RoundID — комната раунда для room-сообщений
	RoundID uint `json:"round_id,omitempty"`

	// InstanceID отправителя, чтобы не применять собственные сообщения дважды
	InstanceID string `json:"instance_id"`

	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClusterRelay ретранслирует события между процессами через Pub/Sub.
// Каждый процесс применяет чужие сообщения к своим локальным клиентам.
type ClusterRelay struct {
	cfg        config.ClusterConfig
	hub        *Hub
	provider   PubSubProvider
	instanceID string
	cancel     context.CancelFunc
}

// NewClusterRelay создает новую ретрансляцию
func NewClusterRelay(hub *Hub, cfg config.ClusterConfig, provider PubSubProvider) *ClusterRelay {
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	return &ClusterRelay{
		cfg:        cfg,
		hub:        hub,
		provider:   provider,
		instanceID: instanceID,
	}
}

// InstanceID возвращает идентификатор этого процесса
func (r *ClusterRelay) InstanceID() string {
	return r.instanceID
}

// Start подписывается на кластерный канал и применяет чужие сообщения
func (r *ClusterRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	msgCh, err := r.provider.Subscribe(ctx, r.cfg.BroadcastChannel)
	if err != nil {
		cancel()
		return err
	}

	go func() {
		for raw := range msgCh {
			var msg ClusterMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("[ClusterRelay] Невалидное кластерное сообщение: %v", err)
				continue
			}
			if msg.InstanceID == r.instanceID {
				continue // Собственное сообщение уже применено локально
			}
			switch msg.MessageType {
			case clusterMsgBroadcast:
				r.hub.BroadcastBytes(msg.Payload)
			case clusterMsgRoom:
				r.hub.BroadcastToRound(msg.RoundID, msg.Payload)
			case clusterMsgDirect:
				r.hub.SendToUser(msg.RecipientID, msg.Payload)
			default:
				log.Printf("[ClusterRelay] Неизвестный тип кластерного сообщения: %s", msg.MessageType)
			}
		}
	}()

	log.Printf("[ClusterRelay] Запущен, instance=%s, канал=%s", r.instanceID, r.cfg.BroadcastChannel)
	return nil
}

// Stop останавливает ретрансляцию
func (r *ClusterRelay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// PublishBroadcast публикует широковещательное событие в кластер
func (r *ClusterRelay) PublishBroadcast(event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.publish(ClusterMessage{
		MessageType: clusterMsgBroadcast,
		Payload:     payload,
	})
}

// PublishToRound публикует событие комнаты раунда в кластер
func (r *ClusterRelay) PublishToRound(roundID uint, payload []byte) error {
	return r.publish(ClusterMessage{
		MessageType: clusterMsgRoom,
		RoundID:     roundID,
		Payload:     payload,
	})
}

// PublishDirect публикует приватное событие аккаунта в кластер
func (r *ClusterRelay) PublishDirect(userID uint, payload []byte) error {
	return r.publish(ClusterMessage{
		MessageType: clusterMsgDirect,
		RecipientID: userID,
		Payload:     payload,
	})
}

func (r *ClusterRelay) publish(msg ClusterMessage) error {
	msg.InstanceID = r.instanceID
	msg.Timestamp = time.Now()
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.provider.Publish(r.cfg.BroadcastChannel, raw)
}
