package repository

import "errors"

// Ошибки уровня хранилища раундов
var (
	// ErrActiveRoundExists — нарушено правило единственного активного раунда:
	// частичный уникальный индекс по статусам waiting/in_progress отклонил вставку.
	ErrActiveRoundExists = errors.New("another active round already exists")

	// ErrVersionConflict — версия раунда изменилась между чтением и записью
	// (коллизия оптимистичной блокировки). Вызывающая сторона перечитывает и повторяет.
	ErrVersionConflict = errors.New("round version conflict")

	// ErrAlreadyJoined — аккаунт уже состоит в участниках раунда
	// (уникальная пара round_id/user_id).
	ErrAlreadyJoined = errors.New("account already joined this round")
)
