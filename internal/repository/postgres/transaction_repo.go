package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
)

// TransactionRepo реализует repository.TransactionRepository.
// Журнал append-only: репозиторий не содержит Update/Delete.
type TransactionRepo struct {
	db *gorm.DB
}

// NewTransactionRepo создает новый репозиторий журнала транзакций
func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Append добавляет запись журнала внутри транзакции вызывающей стороны
func (r *TransactionRepo) Append(tx *gorm.DB, record *entity.Transaction) error {
	return tx.Create(record).Error
}

// ListByUser возвращает записи аккаунта по убыванию времени
func (r *TransactionRepo) ListByUser(userID uint, filters repository.TransactionFilters, limit, offset int) ([]entity.Transaction, int64, error) {
	var records []entity.Transaction
	var total int64

	query := r.db.Model(&entity.Transaction{}).Where("user_id = ?", userID)
	if filters.Kind != "" {
		query = query.Where("kind = ?", filters.Kind)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListByRound возвращает все записи раунда в порядке создания
func (r *TransactionRepo) ListByRound(roundID uint) ([]entity.Transaction, error) {
	var records []entity.Transaction
	err := r.db.
		Where("round_id = ?", roundID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SumByRound возвращает сумму amount по всем записям раунда.
// Для завершенного раунда сумма равна нулю: каждая монета, списанная
// с участников, зачислена победителю, админу или приложению.
func (r *TransactionRepo) SumByRound(roundID uint) (int64, error) {
	var sum int64
	err := r.db.Model(&entity.Transaction{}).
		Where("round_id = ?", roundID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}
