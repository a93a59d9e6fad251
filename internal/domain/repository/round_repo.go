package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
)

// RoundFilters — фильтры для истории раундов
type RoundFilters struct {
	Status string
}

// RoundRepository определяет методы для работы с агрегатом Round.
// Мутирующие методы принимают транзакцию вызывающей стороны: сервис открывает
// одну транзакцию на операцию машины состояний и передает её сюда и в журнал.
type RoundRepository interface {
	// Create вставляет раунд в статусе waiting. Возвращает ErrActiveRoundExists,
	// если частичный уникальный индекс обнаружил другой активный раунд.
	Create(round *entity.Round) error

	GetByID(id uint) (*entity.Round, error)

	// GetActive возвращает единственный раунд в статусе waiting или in_progress
	GetActive() (*entity.Round, error)

	// GetForUpdate читает раунд с участниками и блокировкой строки раунда
	// внутри транзакции tx. Единственная точка входа для мутаций.
	GetForUpdate(tx *gorm.DB, id uint) (*entity.Round, error)

	// UpdateWithVersion сохраняет раунд, требуя совпадения прочитанной версии;
	// при несовпадении возвращает ErrVersionConflict. Версия инкрементируется.
	UpdateWithVersion(tx *gorm.DB, round *entity.Round) error

	// AppendParticipant добавляет участника; ErrAlreadyJoined при дубликате
	AppendParticipant(tx *gorm.DB, participant *entity.Participant) error

	// UpdateParticipant сохраняет отметку выбывания участника
	UpdateParticipant(tx *gorm.DB, participant *entity.Participant) error

	// GetDueWaiting возвращает waiting-раунды с auto_start_at <= now
	GetDueWaiting(now time.Time) ([]entity.Round, error)

	// GetInProgress возвращает все раунды в статусе in_progress
	GetInProgress() ([]entity.Round, error)

	// ListHistory возвращает раунды по убыванию времени создания с total count
	ListHistory(filters RoundFilters, limit, offset int) ([]entity.Round, int64, error)

	// ListByParticipant возвращает раунды, в которых участвовал аккаунт
	ListByParticipant(userID uint, limit, offset int) ([]entity.Round, int64, error)
}
