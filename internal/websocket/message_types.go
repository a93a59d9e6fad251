package websocket

// Типы входящих сообщений от клиентов
const (
	// ROUND_SUBSCRIBE — вход в комнату раунда, payload: {round_id}
	ROUND_SUBSCRIBE = "round.subscribe"

	// ROUND_UNSUBSCRIBE — выход из текущей комнаты раунда
	ROUND_UNSUBSCRIBE = "round.unsubscribe"
)

// Служебные типы исходящих сообщений
const (
	// SERVER_ERROR — стандартизированная ошибка обработки сообщения
	SERVER_ERROR = "server:error"

	// SERVER_SUBSCRIBED — подтверждение входа в комнату раунда
	SERVER_SUBSCRIBED = "server:subscribed"
)
