package roundmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
	"github.com/yourusername/spinwheel-api/internal/service"
)

// Scheduler — единственный ведущий переходов раунда внутри процесса.
// Фоновый обход каждые SweepInterval находит waiting-раунды с истекшим
// дедлайном и in_progress-раунды без таймера в памяти (после рестарта)
// и перезапускает для них последовательности. Советующая блокировка в Redis
// не дает двум процессам вести один раунд.
type Scheduler struct {
	config *Config
	deps   *Dependencies

	// roundCancels хранит активные последовательности, map[uint]*sequence
	roundCancels sync.Map

	cron   gocron.Scheduler
	appCtx context.Context
}

// sequence — запись реестра последовательностей раунда. Флаг eliminating
// отличает наблюдателя дедлайна от таймера выбывания: при ручном старте
// наблюдатель снимается и заменяется таймером.
type sequence struct {
	cancel      context.CancelFunc
	eliminating atomic.Bool
}

// NewScheduler создает новый планировщик раундов
func NewScheduler(config *Config, deps *Dependencies) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		config: config,
		deps:   deps,
	}
}

// Start запускает восстановительный обход и фоновый цикл.
// Первый обход выполняется сразу: после рестарта процесс заново строит
// таймеры для раундов, оставшихся в in_progress.
func (s *Scheduler) Start(ctx context.Context) error {
	s.appCtx = ctx

	log.Println("[RoundScheduler] Восстановительный обход при старте...")
	s.Sweep()

	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if _, err := cron.NewJob(
		gocron.DurationJob(s.config.SweepInterval),
		gocron.NewTask(s.Sweep),
	); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}
	cron.Start()
	s.cron = cron

	log.Printf("[RoundScheduler] Запущен, обход каждые %v", s.config.SweepInterval)
	return nil
}

// Stop останавливает фоновый цикл и отменяет все последовательности
func (s *Scheduler) Stop() {
	if s.cron != nil {
		if err := s.cron.Shutdown(); err != nil {
			log.Printf("[RoundScheduler] Ошибка остановки фонового цикла: %v", err)
		}
	}
	s.roundCancels.Range(func(key, value interface{}) bool {
		value.(*sequence).cancel()
		s.roundCancels.Delete(key)
		return true
	})
	log.Println("[RoundScheduler] Остановлен")
}

// WatchRound подхватывает только что созданный раунд, не дожидаясь обхода
func (s *Scheduler) WatchRound(round *entity.Round) {
	s.adopt(round)
}

// Sweep — один фоновый обход: просроченные waiting-раунды, ожидающие
// waiting-раунды без наблюдателя и in_progress-раунды без таймера.
func (s *Scheduler) Sweep() {
	now := time.Now()

	due, err := s.deps.RoundRepo.GetDueWaiting(now)
	if err != nil {
		log.Printf("[RoundScheduler] Ошибка выборки просроченных раундов: %v", err)
	} else {
		for i := range due {
			s.adopt(&due[i])
		}
	}

	inProgress, err := s.deps.RoundRepo.GetInProgress()
	if err != nil {
		log.Printf("[RoundScheduler] Ошибка выборки идущих раундов: %v", err)
	} else {
		for i := range inProgress {
			s.adopt(&inProgress[i])
		}
	}

	// Waiting-раунд с дедлайном в будущем тоже получает наблюдателя:
	// обратный отсчет и автостарт должны сработать точно, а не на границе обхода
	active, err := s.deps.RoundRepo.GetActive()
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[RoundScheduler] Ошибка выборки активного раунда: %v", err)
		}
		return
	}
	if active.IsWaiting() {
		s.adopt(active)
	}
}

// adopt запускает последовательность раунда, если она еще не идет.
// Раунд, перешедший в in_progress, пока его наблюдатель еще ждет дедлайна
// (ручной старт админом), перехватывается: старый наблюдатель снимается,
// таймер выбывания ставится немедленно.
func (s *Scheduler) adopt(round *entity.Round) {
	if round.IsTerminal() {
		return
	}

	ctx, cancel := context.WithCancel(s.appCtx)
	seq := &sequence{cancel: cancel}

	if prev, loaded := s.roundCancels.LoadOrStore(round.ID, seq); loaded {
		old := prev.(*sequence)
		if round.IsInProgress() && !old.eliminating.Load() {
			old.cancel()
			seq.eliminating.Store(true)
			s.roundCancels.Store(round.ID, seq)
			go s.runEliminationLoop(ctx, seq, round.ID, round.EliminationInterval())
			return
		}
		cancel()
		return
	}

	switch round.Status {
	case entity.RoundStatusWaiting:
		go s.runWaitingSequence(ctx, seq, round.ID, round.AutoStartAt)
	case entity.RoundStatusInProgress:
		seq.eliminating.Store(true)
		go s.runEliminationLoop(ctx, seq, round.ID, round.EliminationInterval())
	default:
		s.release(round.ID, seq)
	}
}

// release снимает последовательность с учета, только если реестр все еще
// указывает на нее: перехваченный наблюдатель не должен удалять таймер,
// который его заменил.
func (s *Scheduler) release(roundID uint, seq *sequence) {
	if s.roundCancels.CompareAndDelete(roundID, seq) {
		seq.cancel()
	}
}

// runWaitingSequence ждет дедлайна автостарта, эмитируя обратный отсчет
// с секундным разрешением в последние CountdownSeconds секунд.
func (s *Scheduler) runWaitingSequence(ctx context.Context, seq *sequence, roundID uint, autoStartAt time.Time) {
	defer s.release(roundID, seq)

	countdownFrom := autoStartAt.Add(-time.Duration(s.config.CountdownSeconds) * time.Second)
	if wait := time.Until(countdownFrom); wait > 0 {
		log.Printf("[RoundScheduler] Раунд #%d: обратный отсчет через %v", roundID, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			log.Printf("[RoundScheduler] Раунд #%d: ожидание отменено", roundID)
			return
		}
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		secondsLeft := int(time.Until(autoStartAt).Seconds())
		if secondsLeft <= 0 {
			break
		}
		payload := service.CountdownPayload{
			RoundID:          roundID,
			SecondsRemaining: secondsLeft,
		}
		if err := s.deps.Publisher.BroadcastToRound(roundID, service.EventRoundCountdown, payload); err != nil {
			log.Printf("[RoundScheduler] Раунд #%d: ошибка отправки отсчета: %v", roundID, err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Printf("[RoundScheduler] Раунд #%d: обратный отсчет отменен", roundID)
			return
		}
	}

	if !s.acquireLock(roundID) {
		log.Printf("[RoundScheduler] Раунд #%d: автостарт ведет другой процесс", roundID)
		return
	}
	round, err := s.deps.Engine.AutoStart(roundID)
	s.releaseLock(roundID)
	if err != nil {
		log.Printf("[RoundScheduler] Раунд #%d: ошибка автостарта: %v", roundID, err)
		return
	}
	if round.IsInProgress() {
		// Переходим к выбыванию в этой же последовательности,
		// не дожидаясь следующего обхода
		seq.eliminating.Store(true)
		s.eliminationLoop(ctx, roundID, round.EliminationInterval())
	}
}

// runEliminationLoop вытягивает по одному имени каждые interval мс,
// пока раунд не покинет in_progress.
func (s *Scheduler) runEliminationLoop(ctx context.Context, seq *sequence, roundID uint, interval time.Duration) {
	defer s.release(roundID, seq)
	s.eliminationLoop(ctx, roundID, interval)
}

func (s *Scheduler) eliminationLoop(ctx context.Context, roundID uint, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	log.Printf("[RoundScheduler] Раунд #%d: выбывание каждые %v", roundID, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.acquireLock(roundID) {
				log.Printf("[RoundScheduler] Раунд #%d: выбывание ведет другой процесс, выходим", roundID)
				return
			}
			round, err := s.deps.Engine.EliminateNext(roundID)
			s.releaseLock(roundID)

			if err != nil {
				if errors.Is(err, apperrors.ErrInvalidState) || errors.Is(err, apperrors.ErrNotFound) {
					// Обычно раунд уже покинул in_progress; но INVALID_STATE
					// приходит и от исчерпанной очереди живого раунда
					log.Printf("[RoundScheduler] Раунд #%d: выбывание остановлено (%v)", roundID, err)
					s.repairIfStuck(roundID)
					return
				}
				if errors.Is(err, apperrors.ErrConflict) {
					// Коллизия версий, повтор на следующем тике
					log.Printf("[RoundScheduler] Раунд #%d: коллизия версий, повтор", roundID)
					continue
				}
				log.Printf("[RoundScheduler] Раунд #%d: ошибка выбывания: %v", roundID, err)
				continue
			}
			if round.IsTerminal() {
				log.Printf("[RoundScheduler] Раунд #%d: завершен, таймер остановлен", roundID)
				return
			}
			// Исчерпанная очередь при живом раунде — аномалия; ремонтируем
			if !round.HasPendingElimination() {
				if _, err := s.deps.Engine.Complete(roundID); err != nil {
					log.Printf("[RoundScheduler] Раунд #%d: ошибка ремонта завершения: %v", roundID, err)
				}
				return
			}

		case <-ctx.Done():
			log.Printf("[RoundScheduler] Раунд #%d: таймер выбывания отменен", roundID)
			return
		}
	}
}

// repairIfStuck завершает раунд, оставшийся в in_progress с исчерпанной
// очередью выбывания: единственный невыбывший участник уже известен,
// завершение синхронно, но сбой между выбыванием и коммитом завершения
// мог оставить раунд висеть.
func (s *Scheduler) repairIfStuck(roundID uint) {
	round, err := s.deps.RoundRepo.GetByID(roundID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[RoundScheduler] Раунд #%d: ошибка чтения при проверке ремонта: %v", roundID, err)
		}
		return
	}
	if !round.IsInProgress() || round.HasPendingElimination() {
		return
	}
	log.Printf("[RoundScheduler] Раунд #%d: очередь исчерпана при живом раунде, ремонт завершения", roundID)
	if _, err := s.deps.Engine.Complete(roundID); err != nil {
		log.Printf("[RoundScheduler] Раунд #%d: ошибка ремонта завершения: %v", roundID, err)
	}
}

// acquireLock берет советующую блокировку раунда в Redis.
// Без Redis (деградация) блокировка считается взятой: внутри одного
// процесса последовательности и так не дублируются.
func (s *Scheduler) acquireLock(roundID uint) bool {
	if s.deps.CacheRepo == nil {
		return true
	}
	ok, err := s.deps.CacheRepo.SetNX(roundLockKey(roundID), s.config.InstanceID, s.config.LockTTL)
	if err != nil {
		log.Printf("[RoundScheduler] Раунд #%d: ошибка взятия блокировки: %v", roundID, err)
		return true
	}
	if !ok {
		// Блокировка может остаться от этого же процесса после сбоя тика
		holder, err := s.deps.CacheRepo.Get(roundLockKey(roundID))
		if err == nil && holder == s.config.InstanceID {
			return true
		}
	}
	return ok
}

// releaseLock отпускает советующую блокировку раунда
func (s *Scheduler) releaseLock(roundID uint) {
	if s.deps.CacheRepo == nil {
		return
	}
	if err := s.deps.CacheRepo.Delete(roundLockKey(roundID)); err != nil {
		log.Printf("[RoundScheduler] Раунд #%d: ошибка снятия блокировки: %v", roundID, err)
	}
}

func roundLockKey(roundID uint) string {
	return fmt.Sprintf("round:lock:%d", roundID)
}
