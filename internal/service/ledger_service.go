package service

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
)

// LedgerService — единственная точка изменения балансов. Каждое движение
// монет выполняется внутри транзакции вызывающей стороны: строка аккаунта
// блокируется FOR UPDATE, баланс меняется, и в журнал добавляется запись
// с балансами до/после. Баланс и журнал коммитятся атомарно.
type LedgerService struct {
	userRepo repository.UserRepository
	txRepo   repository.TransactionRepository
}

// NewLedgerService создает новый сервис леджера
func NewLedgerService(
	userRepo repository.UserRepository,
	txRepo repository.TransactionRepository,
) *LedgerService {
	return &LedgerService{
		userRepo: userRepo,
		txRepo:   txRepo,
	}
}

// Debit списывает amount монет с аккаунта внутри транзакции tx.
// Возвращает ErrInsufficientFunds, если баланс меньше суммы списания;
// баланс никогда не уходит в минус.
func (s *LedgerService) Debit(tx *gorm.DB, userID uint, amount int64, roundID uint, kind string) (*entity.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive, got %d", apperrors.ErrValidation, amount)
	}

	user, err := s.userRepo.GetForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.ErrAccountInactive
	}
	if user.Balance < amount {
		log.Printf("[LedgerService] Отказ списания: пользователь ID=%d, баланс %d < %d", userID, user.Balance, amount)
		return nil, apperrors.ErrInsufficientFunds
	}

	balanceBefore := user.Balance
	balanceAfter := balanceBefore - amount
	if err := tx.Model(&entity.User{}).Where("id = ?", userID).Update("balance", balanceAfter).Error; err != nil {
		return nil, err
	}

	record := &entity.Transaction{
		UserID:        &userID,
		RoundID:       roundID,
		Kind:          kind,
		Amount:        -amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Metadata:      "{}",
	}
	if err := s.txRepo.Append(tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Credit зачисляет amount монет аккаунту внутри транзакции tx
func (s *LedgerService) Credit(tx *gorm.DB, userID uint, amount int64, roundID uint, kind string) (*entity.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %d", apperrors.ErrValidation, amount)
	}

	user, err := s.userRepo.GetForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	balanceBefore := user.Balance
	balanceAfter := balanceBefore + amount
	if err := tx.Model(&entity.User{}).Where("id = ?", userID).Update("balance", balanceAfter).Error; err != nil {
		return nil, err
	}

	record := &entity.Transaction{
		UserID:        &userID,
		RoundID:       roundID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Metadata:      "{}",
	}
	if err := s.txRepo.Append(tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RecordAppFee фиксирует долю приложения в журнале. Запись не привязана
// к балансу аккаунта: UserID пуст, балансы до/после нулевые.
func (s *LedgerService) RecordAppFee(tx *gorm.DB, roundID uint, amount int64) (*entity.Transaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: app fee must be non-negative, got %d", apperrors.ErrValidation, amount)
	}

	record := &entity.Transaction{
		UserID:        nil,
		RoundID:       roundID,
		Kind:          entity.TxKindAppFee,
		Amount:        amount,
		BalanceBefore: 0,
		BalanceAfter:  0,
		Metadata:      "{}",
	}
	if err := s.txRepo.Append(tx, record); err != nil {
		return nil, err
	}
	return record, nil
}
