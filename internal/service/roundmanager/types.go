package roundmanager

import (
	"time"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	"github.com/yourusername/spinwheel-api/internal/service"
)

// Значения по умолчанию
const (
	DefaultSweepInterval    = 10 * time.Second
	DefaultCountdownSeconds = 10
	DefaultLockTTL          = 30 * time.Second
)

// Config содержит настройки планировщика раундов
type Config struct {
	// SweepInterval — период фонового обхода, восстанавливающего таймеры
	SweepInterval time.Duration

	// CountdownSeconds — окно обратного отсчета перед автостартом
	CountdownSeconds int

	// LockTTL — время жизни советующей блокировки "один ведущий на раунд"
	LockTTL time.Duration

	// InstanceID — идентификатор процесса, владелец блокировок
	InstanceID string
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		SweepInterval:    DefaultSweepInterval,
		CountdownSeconds: DefaultCountdownSeconds,
		LockTTL:          DefaultLockTTL,
	}
}

// RoundEngine — операции машины состояний, которые вызывает планировщик.
// Интерфейс сужен до нужного: планировщик не создает раунды и не ведает
// вступлениями.
type RoundEngine interface {
	// AutoStart стартует waiting-раунд с достаточным числом участников,
	// иначе отменяет его с возвратом взносов
	AutoStart(roundID uint) (*entity.Round, error)

	// EliminateNext вытягивает следующее имя; завершает раунд при remaining == 1
	EliminateNext(roundID uint) (*entity.Round, error)

	// Complete — ремонт зависшего in_progress-раунда при восстановлении
	Complete(roundID uint) (*entity.Round, error)
}

// Dependencies содержит зависимости планировщика
type Dependencies struct {
	RoundRepo repository.RoundRepository
	CacheRepo repository.CacheRepository
	Engine    RoundEngine
	Publisher service.EventPublisher
}
