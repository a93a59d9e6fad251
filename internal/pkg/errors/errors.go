package errors

import "errors"

// Общие ошибки приложения. Закрытая таксономия: каждая ошибка бизнес-логики
// оборачивает ровно один из этих сентинелов, HTTP-слой сопоставляет их с kind.
var (
	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized используется для ошибок аутентификации (нет/невалидный токен).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrConflict используется для конфликтов состояния: нарушение правила
	// единственного активного раунда или коллизия оптимистичной блокировки.
	// Единственный класс, который вызывающая сторона может повторить.
	ErrConflict = errors.New("resource state conflict")

	// ErrInvalidState используется, когда нарушено предусловие машины состояний
	// (например, попытка присоединиться к уже запущенному раунду).
	ErrInvalidState = errors.New("invalid round state")

	// ErrInsufficientFunds используется при списании, превышающем баланс.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountInactive используется при операции над деактивированным аккаунтом.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrNotEnoughParticipants используется при старте раунда с числом
	// участников ниже минимума.
	ErrNotEnoughParticipants = errors.New("not enough participants")

	// ErrInternal скрывает прочие сбои; детали остаются в логах.
	ErrInternal = errors.New("internal error")
)

// Kind возвращает строковый код таксономии для ошибки. Неизвестные ошибки
// классифицируются как INTERNAL.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrUnauthorized):
		return "AUTHENTICATION"
	case errors.Is(err, ErrForbidden):
		return "AUTHORIZATION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrAccountInactive):
		return "ACCOUNT_INACTIVE"
	case errors.Is(err, ErrNotEnoughParticipants):
		return "NOT_ENOUGH_PARTICIPANTS"
	default:
		return "INTERNAL"
	}
}
