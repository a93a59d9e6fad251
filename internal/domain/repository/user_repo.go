package repository

import (
	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с аккаунтами
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	Update(user *entity.User) error
	UpdateLastLogin(userID uint) error
	SetActive(userID uint, active bool) error

	// GetForUpdate читает аккаунт с блокировкой строки внутри транзакции tx.
	// Сериализует конкурентные изменения баланса одного аккаунта.
	GetForUpdate(tx *gorm.DB, id uint) (*entity.User, error)

	// GetLeaderboard возвращает аккаунты по убыванию выигрышей с общим количеством
	GetLeaderboard(limit, offset int) ([]entity.User, int64, error)
}
