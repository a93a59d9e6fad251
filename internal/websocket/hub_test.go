package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient создает клиента без живого соединения: учет комнат и
// очереди отправки не трогает conn.
func testClient(h *Hub, userID uint) *Client {
	return NewClient(h, nil, userID, 4)
}

// drain вычитывает одно сообщение из очереди клиента, если оно есть
func drain(c *Client) ([]byte, bool) {
	select {
	case msg := <-c.send:
		return msg, true
	default:
		return nil, false
	}
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	h := NewHub()

	// У одного аккаунта два соединения (две вкладки)
	c1 := testClient(h, 7)
	c2 := testClient(h, 7)
	h.addClient(c1)
	h.addClient(c2)

	assert.Equal(t, 2, h.ClientCount())

	h.removeClient(c1)
	assert.Equal(t, 1, h.ClientCount())

	// Второе соединение аккаунта продолжает получать адресные сообщения
	assert.True(t, h.SendToUser(7, []byte("hi")))
	msg, ok := drain(c2)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), msg)

	h.removeClient(c2)
	assert.Equal(t, 0, h.ClientCount())
	assert.False(t, h.SendToUser(7, []byte("hi")))
}

func TestHub_RemoveClientIsIdempotent(t *testing.T) {
	h := NewHub()
	c := testClient(h, 7)
	h.addClient(c)

	h.removeClient(c)
	// Повторное удаление не должно паниковать на закрытом канале
	h.removeClient(c)

	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_SubscribeToRound(t *testing.T) {
	h := NewHub()
	c := testClient(h, 7)
	h.addClient(c)

	h.SubscribeToRound(c, 42)

	assert.Equal(t, 1, h.RoomSize(42))
	assert.Equal(t, uint(42), c.RoundID())

	// Клиент состоит не более чем в одной комнате
	h.SubscribeToRound(c, 43)
	assert.Equal(t, 0, h.RoomSize(42))
	assert.Equal(t, 1, h.RoomSize(43))
	assert.Equal(t, uint(43), c.RoundID())

	h.UnsubscribeFromRound(c)
	assert.Equal(t, 0, h.RoomSize(43))
	assert.Equal(t, uint(0), c.RoundID())

	// Отписка без подписки безвредна
	h.UnsubscribeFromRound(c)
}

func TestHub_BroadcastToRound_TargetsRoomOnly(t *testing.T) {
	h := NewHub()
	inRoom := testClient(h, 1)
	otherRoom := testClient(h, 2)
	noRoom := testClient(h, 3)
	h.addClient(inRoom)
	h.addClient(otherRoom)
	h.addClient(noRoom)

	h.SubscribeToRound(inRoom, 42)
	h.SubscribeToRound(otherRoom, 99)

	h.BroadcastToRound(42, []byte("tick"))

	msg, ok := drain(inRoom)
	require.True(t, ok)
	assert.Equal(t, []byte("tick"), msg)

	_, ok = drain(otherRoom)
	assert.False(t, ok, "клиент чужой комнаты не должен получать событие")
	_, ok = drain(noRoom)
	assert.False(t, ok, "клиент без подписки не должен получать событие")
}

func TestHub_RemoveClient_CleansRoom(t *testing.T) {
	h := NewHub()
	c := testClient(h, 7)
	h.addClient(c)
	h.SubscribeToRound(c, 42)

	h.removeClient(c)

	assert.Equal(t, 0, h.RoomSize(42))
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_Metrics(t *testing.T) {
	h := NewHub()
	c1 := testClient(h, 1)
	c2 := testClient(h, 2)
	h.addClient(c1)
	h.addClient(c2)
	h.SubscribeToRound(c1, 42)

	m := h.GetMetrics()

	assert.Equal(t, 2, m["client_count"])
	assert.Equal(t, 2, m["user_count"])
	assert.Equal(t, 1, m["room_count"])
}
