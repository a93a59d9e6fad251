package entity

import (
	"time"

	"github.com/lib/pq"
)

// Статусы раунда
const (
	RoundStatusWaiting    = "waiting"
	RoundStatusInProgress = "in_progress"
	RoundStatusCompleted  = "completed"
	RoundStatusAborted    = "aborted"
)

// Причины отмены раунда
const (
	AbortReasonInsufficientParticipants = "insufficient_participants"
	AbortReasonAdminRequest             = "admin_request"
)

// Границы параметров раунда
const (
	MinParticipantsFloor = 3
	MaxParticipantsCeil  = 1000
)

// Round представляет один розыгрыш "колеса" от создания до терминального статуса.
// Версия (Version) — тег оптимистичной блокировки: каждое обновление требует
// совпадения прочитанной версии и инкрементирует её.
type Round struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	AdminID uint   `gorm:"not null;index" json:"admin_id"`
	Status  string `gorm:"size:20;not null;default:'waiting';index:idx_rounds_status_created,priority:1" json:"status"`

	EntryFee        int64 `gorm:"not null" json:"entry_fee"`
	MinParticipants int   `gorm:"not null" json:"min_participants"`
	MaxParticipants int   `gorm:"not null" json:"max_participants"`

	// Проценты распределения пула; фиксируются из конфигурации на момент создания.
	WinnerPct int `gorm:"not null" json:"winner_pct"`
	AdminPct  int `gorm:"not null" json:"admin_pct"`
	AppPct    int `gorm:"not null" json:"app_pct"`

	// Пулы в целых монетах. Инвариант:
	// winner_pool + admin_pool + app_pool == entry_fee * len(participants).
	WinnerPool int64 `gorm:"not null;default:0" json:"winner_pool"`
	AdminPool  int64 `gorm:"not null;default:0" json:"admin_pool"`
	AppPool    int64 `gorm:"not null;default:0" json:"app_pool"`

	Participants []Participant `gorm:"foreignKey:RoundID" json:"participants,omitempty"`

	// EliminationOrder — перестановка ID участников, фиксируется при старте.
	// Последний элемент — задуманный победитель, он никогда не "вытягивается":
	// раунд завершается, как только остаётся один невыбывший.
	EliminationOrder pq.Int64Array `gorm:"type:bigint[]" json:"elimination_order,omitempty"`
	EliminationIndex int           `gorm:"not null;default:0" json:"elimination_index"`

	AutoStartAt time.Time  `gorm:"not null;index" json:"auto_start_at"`
	StartedAt   *time.Time `gorm:"type:timestamp" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"type:timestamp" json:"completed_at,omitempty"`

	WinnerID    *uint  `gorm:"index" json:"winner_id,omitempty"`
	AbortReason string `gorm:"size:50;not null;default:''" json:"abort_reason,omitempty"`

	// EliminationIntervalMs — период тиков выбывания для этого раунда.
	EliminationIntervalMs int `gorm:"not null" json:"elimination_interval_ms"`

	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"index:idx_rounds_status_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Round) TableName() string {
	return "rounds"
}

// EliminationInterval возвращает период тиков выбывания
func (r *Round) EliminationInterval() time.Duration {
	return time.Duration(r.EliminationIntervalMs) * time.Millisecond
}

// IsWaiting проверяет, ждет ли раунд участников
func (r *Round) IsWaiting() bool {
	return r.Status == RoundStatusWaiting
}

// IsInProgress проверяет, идет ли выбывание
func (r *Round) IsInProgress() bool {
	return r.Status == RoundStatusInProgress
}

// IsActive — раунд в нетерминальном статусе (waiting или in_progress)
func (r *Round) IsActive() bool {
	return r.IsWaiting() || r.IsInProgress()
}

// IsTerminal — раунд завершен или отменен; дальнейшие мутации запрещены
func (r *Round) IsTerminal() bool {
	return r.Status == RoundStatusCompleted || r.Status == RoundStatusAborted
}

// IsFull проверяет, достигнут ли maxParticipants
func (r *Round) IsFull() bool {
	return len(r.Participants) >= r.MaxParticipants
}

// HasParticipant проверяет, состоит ли аккаунт в раунде
func (r *Round) HasParticipant(userID uint) bool {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantByUserID возвращает участника по ID аккаунта
func (r *Round) ParticipantByUserID(userID uint) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// SplitFee делит взнос на доли пулов в целочисленной арифметике.
// Остаток от округления вниз целиком уходит в долю победителя, поэтому
// winner+admin+app == fee точно, без "плавающих" монет.
func (r *Round) SplitFee(fee int64) (winner, admin, app int64) {
	winner = fee * int64(r.WinnerPct) / 100
	admin = fee * int64(r.AdminPct) / 100
	app = fee * int64(r.AppPct) / 100
	winner += fee - winner - admin - app
	return winner, admin, app
}

// AddEntryFee увеличивает пулы на доли одного взноса
func (r *Round) AddEntryFee(fee int64) {
	w, a, p := r.SplitFee(fee)
	r.WinnerPool += w
	r.AdminPool += a
	r.AppPool += p
}

// ZeroPools обнуляет пулы (возврат взносов при отмене)
func (r *Round) ZeroPools() {
	r.WinnerPool = 0
	r.AdminPool = 0
	r.AppPool = 0
}

// RemainingCount возвращает число невыбывших участников
func (r *Round) RemainingCount() int {
	remaining := 0
	for i := range r.Participants {
		if !r.Participants[i].Eliminated {
			remaining++
		}
	}
	return remaining
}

// RemainingOne возвращает единственного невыбывшего участника, либо nil,
// если их не ровно один.
func (r *Round) RemainingOne() *Participant {
	var last *Participant
	for i := range r.Participants {
		if !r.Participants[i].Eliminated {
			if last != nil {
				return nil
			}
			last = &r.Participants[i]
		}
	}
	return last
}

// HasPendingElimination сообщает, остались ли невытянутые имена в очереди
func (r *Round) HasPendingElimination() bool {
	return r.EliminationIndex < len(r.EliminationOrder)
}

// NextVictimID возвращает ID аккаунта следующего выбывающего.
// Второе значение false, если очередь исчерпана.
func (r *Round) NextVictimID() (uint, bool) {
	if !r.HasPendingElimination() {
		return 0, false
	}
	return uint(r.EliminationOrder[r.EliminationIndex]), true
}

// MarkEliminated помечает участника выбывшим и сдвигает указатель очереди.
// Позиция выбывания нумеруется с 1.
func (r *Round) MarkEliminated(userID uint, at time.Time) *Participant {
	p := r.ParticipantByUserID(userID)
	if p == nil || p.Eliminated {
		return nil
	}
	position := r.EliminationIndex + 1
	p.Eliminated = true
	p.EliminatedAt = &at
	p.EliminationPosition = &position
	r.EliminationIndex++
	return p
}

// TotalCollected возвращает сумму собранных взносов
func (r *Round) TotalCollected() int64 {
	return r.EntryFee * int64(len(r.Participants))
}
