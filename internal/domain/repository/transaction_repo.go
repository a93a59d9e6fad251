package repository

import (
	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
)

// TransactionFilters — фильтры выборки журнала
type TransactionFilters struct {
	Kind string
}

// TransactionRepository определяет методы для работы с журналом транзакций.
// Журнал append-only: интерфейс сознательно не содержит Update/Delete.
type TransactionRepository interface {
	// Append добавляет запись внутри транзакции вызывающей стороны
	Append(tx *gorm.DB, record *entity.Transaction) error

	// ListByUser возвращает записи аккаунта по убыванию времени с total count
	ListByUser(userID uint, filters TransactionFilters, limit, offset int) ([]entity.Transaction, int64, error)

	// ListByRound возвращает все записи раунда в порядке создания
	ListByRound(roundID uint) ([]entity.Transaction, error)

	// SumByRound возвращает сумму amount по всем записям раунда
	SumByRound(roundID uint) (int64, error)
}
