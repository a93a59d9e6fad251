package entity

import "time"

// Participant — участие аккаунта в конкретном раунде. Порядок вставки
// сохраняется (выборка сортируется по id). Пара (round_id, user_id) уникальна.
type Participant struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	RoundID uint `gorm:"not null;uniqueIndex:idx_participants_round_user,priority:1;index" json:"round_id"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_participants_round_user,priority:2;index" json:"user_id"`

	// Username — снимок имени на момент вступления; не обновляется при
	// переименовании аккаунта.
	Username string `gorm:"size:50;not null" json:"username"`

	EntryFeePaid int64     `gorm:"not null" json:"entry_fee_paid"`
	JoinedAt     time.Time `gorm:"not null" json:"joined_at"`

	Eliminated          bool       `gorm:"not null;default:false" json:"eliminated"`
	EliminatedAt        *time.Time `gorm:"type:timestamp" json:"eliminated_at,omitempty"`
	EliminationPosition *int       `json:"elimination_position,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "participants"
}
