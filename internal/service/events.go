package service

import "time"

// Имена событий real-time канала. Контракт стабилен побайтово:
// подписчики сверяются с этими строками, менять их нельзя.
const (
	EventRoundCreated     = "round.created"
	EventRoundJoined      = "round.joined"
	EventRoundCountdown   = "round.countdown"
	EventRoundStarted     = "round.started"
	EventRoundElimination = "round.elimination"
	EventRoundCompleted   = "round.completed"
	EventRoundAborted     = "round.aborted"
	EventUserWon          = "user.won"
)

// EventPublisher — выходной порт движка раундов в real-time канал.
// Сервисы публикуют события ТОЛЬКО после коммита транзакции; доставка
// best-effort, подписчики сверяются с авторитетным состоянием раунда по REST.
type EventPublisher interface {
	// BroadcastEvent отправляет событие всем подключенным клиентам
	BroadcastEvent(eventType string, payload interface{}) error

	// BroadcastToRound отправляет событие подписчикам комнаты раунда
	BroadcastToRound(roundID uint, eventType string, payload interface{}) error

	// SendEventToUser отправляет приватное событие одному аккаунту
	SendEventToUser(userID uint, eventType string, payload interface{}) error
}

// NoOpEventPublisher — заглушка для тестов и оффлайн-режимов
type NoOpEventPublisher struct{}

func (NoOpEventPublisher) BroadcastEvent(eventType string, payload interface{}) error {
	return nil
}

func (NoOpEventPublisher) BroadcastToRound(roundID uint, eventType string, payload interface{}) error {
	return nil
}

func (NoOpEventPublisher) SendEventToUser(userID uint, eventType string, payload interface{}) error {
	return nil
}

// RoundSummaryPayload — сводка раунда для round.created / round.joined
type RoundSummaryPayload struct {
	RoundID          uint      `json:"round_id"`
	Status           string    `json:"status"`
	EntryFee         int64     `json:"entry_fee"`
	MinParticipants  int       `json:"min_participants"`
	MaxParticipants  int       `json:"max_participants"`
	ParticipantCount int       `json:"participant_count"`
	AutoStartAt      time.Time `json:"auto_start_at"`
}

// RoundJoinedPayload — сводка раунда плюс новый участник
type RoundJoinedPayload struct {
	RoundSummaryPayload
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// CountdownPayload — тик обратного отсчета перед автостартом
type CountdownPayload struct {
	RoundID          uint `json:"round_id"`
	SecondsRemaining int  `json:"seconds_remaining"`
}

// RoundStartedPayload — раунд перешел в in_progress
type RoundStartedPayload struct {
	RoundID          uint    `json:"round_id"`
	ParticipantCount int     `json:"participant_count"`
	EliminationOrder []int64 `json:"elimination_order"`
	StartedAt        string  `json:"started_at"`
}

// EliminationPayload — один выбывший
type EliminationPayload struct {
	RoundID   uint `json:"round_id"`
	VictimID  uint `json:"victim_id"`
	Position  int  `json:"position"`
	Remaining int  `json:"remaining"`
}

// RoundCompletedPayload — раунд завершен, призы выплачены
type RoundCompletedPayload struct {
	RoundID    uint  `json:"round_id"`
	WinnerID   uint  `json:"winner_id"`
	WinnerPool int64 `json:"winner_pool"`
	AdminPool  int64 `json:"admin_pool"`
	AppPool    int64 `json:"app_pool"`
}

// RoundAbortedPayload — раунд отменен, взносы возвращены
type RoundAbortedPayload struct {
	RoundID  uint   `json:"round_id"`
	Reason   string `json:"reason"`
	Refunded int64  `json:"refunded"`
}

// UserWonPayload — приватное уведомление победителя
type UserWonPayload struct {
	RoundID uint  `json:"round_id"`
	Prize   int64 `json:"prize"`
}
