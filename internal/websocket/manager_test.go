package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/spinwheel-api/internal/service"
)

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) SAdd(key string, member string) error {
	args := m.Called(key, member)
	return args.Error(0)
}

func (m *MockCacheRepository) SRem(key string, member string) error {
	args := m.Called(key, member)
	return args.Error(0)
}

func (m *MockCacheRepository) SMembers(key string) ([]string, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func subscribeMessage(roundID uint) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"data":{"round_id":%d}}`, ROUND_SUBSCRIBE, roundID))
}

func TestManager_Subscribe_TracksAudienceInRedis(t *testing.T) {
	hub := NewHub()
	cache := new(MockCacheRepository)
	m := NewManager(hub)
	m.SetCacheRepo(cache)

	client := testClient(hub, 7)
	hub.addClient(client)
	member := fmt.Sprintf("7:%s", client.ConnectionID)

	cache.On("SAdd", "round:subscribers:42", member).Return(nil).Once()

	require.NoError(t, m.HandleMessage(subscribeMessage(42), client))

	assert.Equal(t, uint(42), client.RoundID())
	cache.AssertExpectations(t)

	// Переход в другую комнату: снятие со старой, учет в новой
	cache.On("SRem", "round:subscribers:42", member).Return(nil).Once()
	cache.On("SAdd", "round:subscribers:43", member).Return(nil).Once()

	require.NoError(t, m.HandleMessage(subscribeMessage(43), client))

	cache.AssertExpectations(t)
}

func TestManager_Unsubscribe_RemovesAudienceMember(t *testing.T) {
	hub := NewHub()
	cache := new(MockCacheRepository)
	m := NewManager(hub)
	m.SetCacheRepo(cache)

	client := testClient(hub, 7)
	hub.addClient(client)
	member := fmt.Sprintf("7:%s", client.ConnectionID)

	cache.On("SAdd", "round:subscribers:42", member).Return(nil).Once()
	require.NoError(t, m.HandleMessage(subscribeMessage(42), client))

	cache.On("SRem", "round:subscribers:42", member).Return(nil).Once()
	msg := []byte(fmt.Sprintf(`{"type":%q}`, ROUND_UNSUBSCRIBE))
	require.NoError(t, m.HandleMessage(msg, client))

	assert.Equal(t, uint(0), client.RoundID())
	cache.AssertExpectations(t)
}

func TestManager_Disconnect_RemovesAudienceMember(t *testing.T) {
	hub := NewHub()
	cache := new(MockCacheRepository)
	m := NewManager(hub)
	m.SetCacheRepo(cache)

	client := testClient(hub, 7)
	hub.addClient(client)
	hub.SubscribeToRound(client, 42)
	member := fmt.Sprintf("7:%s", client.ConnectionID)

	cache.On("SRem", "round:subscribers:42", member).Return(nil).Once()

	m.Disconnect(client)

	cache.AssertExpectations(t)
}

func TestManager_RoundAudience(t *testing.T) {
	hub := NewHub()
	cache := new(MockCacheRepository)
	m := NewManager(hub)
	m.SetCacheRepo(cache)

	// С Redis аудитория кластерная: считаются подписчики всех процессов
	cache.On("SMembers", "round:subscribers:42").
		Return([]string{"1:a", "2:b", "3:c"}, nil).Once()

	assert.Equal(t, 3, m.RoundAudience(42))
	cache.AssertExpectations(t)
}

func TestManager_RoundAudience_FallsBackToLocalRoom(t *testing.T) {
	hub := NewHub()
	m := NewManager(hub)

	client := testClient(hub, 7)
	hub.addClient(client)
	hub.SubscribeToRound(client, 42)

	// Без Redis аудитория — локальная комната хаба
	assert.Equal(t, 1, m.RoundAudience(42))
}

func TestManager_BroadcastToRound_ClearsAudienceOnTerminalEvent(t *testing.T) {
	hub := NewHub()
	cache := new(MockCacheRepository)
	m := NewManager(hub)
	m.SetCacheRepo(cache)

	cache.On("Delete", "round:subscribers:42").Return(nil).Once()
	require.NoError(t, m.BroadcastToRound(42, service.EventRoundCompleted, map[string]interface{}{"round_id": 42}))

	cache.On("Delete", "round:subscribers:9").Return(nil).Once()
	require.NoError(t, m.BroadcastToRound(9, service.EventRoundAborted, map[string]interface{}{"round_id": 9}))

	// Нетерминальное событие множество не трогает
	require.NoError(t, m.BroadcastToRound(42, service.EventRoundElimination, map[string]interface{}{"round_id": 42}))

	cache.AssertExpectations(t)
}
