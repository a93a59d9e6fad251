package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
)

// RoundRepo реализует repository.RoundRepository
type RoundRepo struct {
	db *gorm.DB
}

// NewRoundRepo создает новый репозиторий раундов
func NewRoundRepo(db *gorm.DB) *RoundRepo {
	return &RoundRepo{db: db}
}

// isUniqueViolation проверяет ошибку unique constraint (код 23505)
// для обоих драйверов: pgx и lib/pq.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}

// Create вставляет раунд в статусе waiting. Частичный уникальный индекс
// idx_rounds_single_active гарантирует не больше одного активного раунда:
// конкурирующая вставка получает 23505 и превращается в ErrActiveRoundExists.
func (r *RoundRepo) Create(round *entity.Round) error {
	err := r.db.Create(round).Error
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrActiveRoundExists
		}
		return err
	}
	return nil
}

// GetByID возвращает раунд с участниками
func (r *RoundRepo) GetByID(id uint) (*entity.Round, error) {
	var round entity.Round
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.id ASC")
		}).
		First(&round, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &round, nil
}

// GetActive возвращает единственный раунд в статусе waiting или in_progress
func (r *RoundRepo) GetActive() (*entity.Round, error) {
	var round entity.Round
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.id ASC")
		}).
		Where("status IN ?", []string{entity.RoundStatusWaiting, entity.RoundStatusInProgress}).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &round, nil
}

// GetForUpdate читает раунд с блокировкой SELECT ... FOR UPDATE внутри
// транзакции. Участники подгружаются после взятия блокировки.
func (r *RoundRepo) GetForUpdate(tx *gorm.DB, id uint) (*entity.Round, error) {
	var round entity.Round
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&round, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	err = tx.Where("round_id = ?", id).Order("id ASC").Find(&round.Participants).Error
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// UpdateWithVersion сохраняет раунд при совпадении версии (optimistic
// concurrency control). RowsAffected == 0 означает, что версия изменилась
// между чтением и записью — вызывающая сторона перечитывает и повторяет.
func (r *RoundRepo) UpdateWithVersion(tx *gorm.DB, round *entity.Round) error {
	readVersion := round.Version
	round.Version = readVersion + 1

	result := tx.Model(&entity.Round{}).
		Where("id = ? AND version = ?", round.ID, readVersion).
		Updates(map[string]interface{}{
			"status":                  round.Status,
			"winner_pool":             round.WinnerPool,
			"admin_pool":              round.AdminPool,
			"app_pool":                round.AppPool,
			"elimination_order":       round.EliminationOrder,
			"elimination_index":       round.EliminationIndex,
			"started_at":              round.StartedAt,
			"completed_at":            round.CompletedAt,
			"winner_id":               round.WinnerID,
			"abort_reason":            round.AbortReason,
			"elimination_interval_ms": round.EliminationIntervalMs,
			"version":                 round.Version,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		round.Version = readVersion
		if isUniqueViolation(result.Error) {
			return repository.ErrActiveRoundExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		round.Version = readVersion
		return repository.ErrVersionConflict
	}
	return nil
}

// AppendParticipant добавляет участника раунда. Уникальная пара
// round_id/user_id превращает повторную вставку в ErrAlreadyJoined.
func (r *RoundRepo) AppendParticipant(tx *gorm.DB, participant *entity.Participant) error {
	err := tx.Create(participant).Error
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyJoined
		}
		return err
	}
	return nil
}

// UpdateParticipant сохраняет отметку выбывания участника
func (r *RoundRepo) UpdateParticipant(tx *gorm.DB, participant *entity.Participant) error {
	return tx.Save(participant).Error
}

// GetDueWaiting возвращает waiting-раунды с истекшим дедлайном автостарта
func (r *RoundRepo) GetDueWaiting(now time.Time) ([]entity.Round, error) {
	var rounds []entity.Round
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.id ASC")
		}).
		Where("status = ? AND auto_start_at <= ?", entity.RoundStatusWaiting, now).
		Order("auto_start_at ASC").
		Find(&rounds).Error
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

// GetInProgress возвращает все раунды в статусе in_progress.
// Используется восстановлением планировщика после рестарта.
func (r *RoundRepo) GetInProgress() ([]entity.Round, error) {
	var rounds []entity.Round
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.id ASC")
		}).
		Where("status = ?", entity.RoundStatusInProgress).
		Find(&rounds).Error
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

// ListHistory возвращает раунды по убыванию времени создания
func (r *RoundRepo) ListHistory(filters repository.RoundFilters, limit, offset int) ([]entity.Round, int64, error) {
	var rounds []entity.Round
	var total int64

	query := r.db.Model(&entity.Round{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.id ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rounds).Error
	if err != nil {
		return nil, 0, err
	}
	return rounds, total, nil
}

// ListByParticipant возвращает раунды, в которых участвовал аккаунт
func (r *RoundRepo) ListByParticipant(userID uint, limit, offset int) ([]entity.Round, int64, error) {
	var rounds []entity.Round
	var total int64

	sub := r.db.Model(&entity.Participant{}).
		Select("round_id").
		Where("user_id = ?", userID)

	query := r.db.Model(&entity.Round{}).Where("id IN (?)", sub)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.id ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rounds).Error
	if err != nil {
		return nil, 0, err
	}
	return rounds, total, nil
}
