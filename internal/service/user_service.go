package service

import (
	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
)

// UserService предоставляет чтение профилей, балансов и журнала транзакций
type UserService struct {
	userRepo repository.UserRepository
	txRepo   repository.TransactionRepository
}

// NewUserService создает новый сервис аккаунтов
func NewUserService(
	userRepo repository.UserRepository,
	txRepo repository.TransactionRepository,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		txRepo:   txRepo,
	}
}

// GetByID возвращает аккаунт по ID
func (s *UserService) GetByID(userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(userID)
}

// GetBalance возвращает текущий баланс аккаунта
func (s *UserService) GetBalance(userID uint) (int64, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// ListTransactions возвращает журнал аккаунта постранично
func (s *UserService) ListTransactions(userID uint, kind string, limit, offset int) ([]entity.Transaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.txRepo.ListByUser(userID, repository.TransactionFilters{Kind: kind}, limit, offset)
}

// ListRoundTransactions возвращает все записи журнала одного раунда.
// Используется админской выгрузкой отчета.
func (s *UserService) ListRoundTransactions(roundID uint) ([]entity.Transaction, error) {
	return s.txRepo.ListByRound(roundID)
}

// GetLeaderboard возвращает таблицу лидеров по сумме выигрышей
func (s *UserService) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.GetLeaderboard(limit, offset)
}

// SetActive включает или выключает аккаунт (админская операция)
func (s *UserService) SetActive(userID uint, active bool) error {
	return s.userRepo.SetActive(userID, active)
}
