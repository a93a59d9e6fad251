package entity

import "time"

// Виды записей журнала
const (
	TxKindEntryFee        = "entry_fee"
	TxKindRefund          = "refund"
	TxKindPrizeWin        = "prize_win"
	TxKindAdminCommission = "admin_commission"
	TxKindAppFee          = "app_fee"
)

// Transaction — запись журнала движения монет. Журнал append-only: записи
// никогда не изменяются и не удаляются; любое состояние баланса должно
// восстанавливаться суммированием записей.
type Transaction struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// UserID пуст для записей app_fee — комиссия приложения не привязана
	// к балансу аккаунта.
	UserID  *uint `gorm:"index:idx_transactions_user_created,priority:1" json:"user_id,omitempty"`
	RoundID uint  `gorm:"not null;index:idx_transactions_round_kind,priority:1" json:"round_id"`

	Kind string `gorm:"size:30;not null;index:idx_transactions_round_kind,priority:2" json:"kind"`

	// Amount подписан: списание отрицательно, зачисление положительно.
	Amount int64 `gorm:"not null" json:"amount"`

	// Балансы до/после — авторитетные значения на момент коммита.
	// Для app_fee оба равны нулю.
	BalanceBefore int64 `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64 `gorm:"not null" json:"balance_after"`

	Metadata string `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_transactions_user_created,priority:2,sort:desc" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Transaction) TableName() string {
	return "transactions"
}
