package service

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/config"
	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
)

// WinnerNotifier отправляет победителю письмо после завершения раунда
type WinnerNotifier interface {
	SendWinnerEmail(email, username string, roundID uint, prize int64) error
}

// pendingEvent — событие, накопленное внутри транзакции. Публикуется
// только после коммита: незакоммиченное состояние не анонсируется.
type pendingEvent struct {
	roundID   uint
	userID    uint // для приватных событий; 0 — broadcast
	global    bool // true — всем клиентам, false — комнате раунда
	eventType string
	payload   interface{}
}

// RoundService реализует машину состояний раунда
// Waiting → InProgress → Completed | Aborted. Каждая операция — одна
// транзакция БД (хранилище раундов + леджер); при ошибке ничего не коммитится.
type RoundService struct {
	db        *gorm.DB
	roundRepo repository.RoundRepository
	userRepo  repository.UserRepository
	ledger    *LedgerService
	publisher EventPublisher
	mailer    WinnerNotifier
	gameCfg   *config.GameConfig
}

// NewRoundService создает новый сервис раундов
func NewRoundService(
	db *gorm.DB,
	roundRepo repository.RoundRepository,
	userRepo repository.UserRepository,
	ledger *LedgerService,
	publisher EventPublisher,
	mailer WinnerNotifier,
	gameCfg *config.GameConfig,
) *RoundService {
	if publisher == nil {
		publisher = NoOpEventPublisher{}
	}
	return &RoundService{
		db:        db,
		roundRepo: roundRepo,
		userRepo:  userRepo,
		ledger:    ledger,
		publisher: publisher,
		mailer:    mailer,
		gameCfg:   gameCfg,
	}
}

// CreateRound создает раунд в статусе waiting. Только для админа;
// правило единственного активного раунда защищено частичным уникальным
// индексом в БД, конкурирующее создание получает CONFLICT.
func (s *RoundService) CreateRound(adminID uint, entryFee int64, maxParticipants int) (*entity.Round, error) {
	admin, err := s.userRepo.GetByID(adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, fmt.Errorf("%w: only admin can create rounds", apperrors.ErrForbidden)
	}

	if entryFee < 1 {
		return nil, fmt.Errorf("%w: entry fee must be at least 1, got %d", apperrors.ErrValidation, entryFee)
	}
	if maxParticipants < entity.MinParticipantsFloor || maxParticipants > entity.MaxParticipantsCeil {
		return nil, fmt.Errorf("%w: max participants must be between %d and %d, got %d",
			apperrors.ErrValidation, entity.MinParticipantsFloor, entity.MaxParticipantsCeil, maxParticipants)
	}
	if maxParticipants < s.gameCfg.MinParticipants {
		return nil, fmt.Errorf("%w: max participants %d is below the start minimum %d",
			apperrors.ErrValidation, maxParticipants, s.gameCfg.MinParticipants)
	}

	now := time.Now()
	round := &entity.Round{
		AdminID:               adminID,
		Status:                entity.RoundStatusWaiting,
		EntryFee:              entryFee,
		MinParticipants:       s.gameCfg.MinParticipants,
		MaxParticipants:       maxParticipants,
		WinnerPct:             s.gameCfg.WinnerPct,
		AdminPct:              s.gameCfg.AdminPct,
		AppPct:                s.gameCfg.AppPct,
		AutoStartAt:           now.Add(s.gameCfg.AutoStartDelay()),
		EliminationIntervalMs: s.gameCfg.EliminationIntervalMs,
	}

	if err := s.roundRepo.Create(round); err != nil {
		if errors.Is(err, repository.ErrActiveRoundExists) {
			return nil, fmt.Errorf("%w: another round is already active", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}

	log.Printf("[RoundService] Раунд ID=%d создан админом ID=%d: взнос %d, автостарт %s",
		round.ID, adminID, entryFee, round.AutoStartAt.Format(time.RFC3339))

	s.publish([]pendingEvent{{
		global:    true,
		eventType: EventRoundCreated,
		payload:   summaryPayload(round),
	}})
	return round, nil
}

// Join атомарно списывает взнос и добавляет участника в waiting-раунд.
// Конкурентные вступления сериализуются на блокировке строки раунда,
// проверка maxParticipants повторяется под блокировкой.
func (s *RoundService) Join(userID, roundID uint) (*entity.Round, error) {
	var round *entity.Round
	var events []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = s.roundRepo.GetForUpdate(tx, roundID)
		if err != nil {
			return err
		}
		if !round.IsWaiting() {
			return fmt.Errorf("%w: round %d is not accepting participants (status=%s)",
				apperrors.ErrConflict, roundID, round.Status)
		}
		if round.AdminID == userID {
			return fmt.Errorf("%w: round admin cannot join own round", apperrors.ErrForbidden)
		}
		if round.HasParticipant(userID) {
			return fmt.Errorf("%w: already joined round %d", apperrors.ErrConflict, roundID)
		}
		if round.IsFull() {
			return fmt.Errorf("%w: round %d is full", apperrors.ErrConflict, roundID)
		}

		user, err := s.userRepo.GetByID(userID)
		if err != nil {
			return err
		}

		// Списание и запись журнала — в этой же транзакции
		if _, err := s.ledger.Debit(tx, userID, round.EntryFee, round.ID, entity.TxKindEntryFee); err != nil {
			return err
		}

		participant := &entity.Participant{
			RoundID:      round.ID,
			UserID:       userID,
			Username:     user.Username,
			EntryFeePaid: round.EntryFee,
			JoinedAt:     time.Now(),
		}
		if err := s.roundRepo.AppendParticipant(tx, participant); err != nil {
			if errors.Is(err, repository.ErrAlreadyJoined) {
				return fmt.Errorf("%w: already joined round %d", apperrors.ErrConflict, roundID)
			}
			return err
		}
		round.Participants = append(round.Participants, *participant)

		round.AddEntryFee(round.EntryFee)
		if err := s.roundRepo.UpdateWithVersion(tx, round); err != nil {
			return mapStoreErr(err)
		}

		events = append(events, pendingEvent{
			global:    true,
			eventType: EventRoundJoined,
			payload: RoundJoinedPayload{
				RoundSummaryPayload: summaryPayload(round),
				UserID:              userID,
				Username:            user.Username,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[RoundService] Пользователь ID=%d вступил в раунд ID=%d (%d/%d)",
		userID, roundID, len(round.Participants), round.MaxParticipants)
	s.publish(events)
	return round, nil
}

// Start переводит waiting-раунд в in_progress: фиксирует порядок выбывания
// (перестановка Фишера-Йетса всех участников) и отметку времени старта.
func (s *RoundService) Start(roundID uint) (*entity.Round, error) {
	var round *entity.Round
	var events []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = s.roundRepo.GetForUpdate(tx, roundID)
		if err != nil {
			return err
		}
		return s.startLocked(tx, round, &events)
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	return round, nil
}

// startLocked выполняет старт под уже взятой блокировкой строки раунда
func (s *RoundService) startLocked(tx *gorm.DB, round *entity.Round, events *[]pendingEvent) error {
	if !round.IsWaiting() {
		return fmt.Errorf("%w: round %d cannot start from status %s",
			apperrors.ErrInvalidState, round.ID, round.Status)
	}
	if len(round.Participants) < round.MinParticipants {
		return fmt.Errorf("%w: round %d has %d participants, need %d",
			apperrors.ErrNotEnoughParticipants, round.ID, len(round.Participants), round.MinParticipants)
	}

	now := time.Now()
	order := make(pq.Int64Array, len(round.Participants))
	for i := range round.Participants {
		order[i] = int64(round.Participants[i].UserID)
	}
	// Локальный PRNG: между раундами порядок непредсказуем для внешнего
	// наблюдателя, криптостойкость не требуется.
	rng := rand.New(rand.NewSource(now.UnixNano() ^ int64(round.ID)<<17))
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	round.Status = entity.RoundStatusInProgress
	round.EliminationOrder = order
	round.EliminationIndex = 0
	round.StartedAt = &now

	if err := s.roundRepo.UpdateWithVersion(tx, round); err != nil {
		return mapStoreErr(err)
	}

	log.Printf("[RoundService] Раунд ID=%d стартовал: %d участников", round.ID, len(round.Participants))
	*events = append(*events, pendingEvent{
		roundID:   round.ID,
		eventType: EventRoundStarted,
		payload: RoundStartedPayload{
			RoundID:          round.ID,
			ParticipantCount: len(round.Participants),
			EliminationOrder: []int64(order),
			StartedAt:        now.Format(time.RFC3339),
		},
	})
	return nil
}

// EliminateNext вытягивает следующее имя из очереди выбывания. Когда
// невыбывшим остается один участник, завершение раунда происходит в той же
// транзакции: последний элемент очереди никогда не вытягивается.
func (s *RoundService) EliminateNext(roundID uint) (*entity.Round, error) {
	var round *entity.Round
	var events []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = s.roundRepo.GetForUpdate(tx, roundID)
		if err != nil {
			return err
		}
		if !round.IsInProgress() {
			return fmt.Errorf("%w: round %d is not in progress (status=%s)",
				apperrors.ErrInvalidState, roundID, round.Status)
		}

		victimID, ok := round.NextVictimID()
		if !ok {
			return fmt.Errorf("%w: elimination queue of round %d is exhausted",
				apperrors.ErrInvalidState, roundID)
		}

		now := time.Now()
		victim := round.MarkEliminated(victimID, now)
		if victim == nil {
			return fmt.Errorf("%w: victim %d of round %d is missing or already eliminated",
				apperrors.ErrInternal, victimID, roundID)
		}
		if err := s.roundRepo.UpdateParticipant(tx, victim); err != nil {
			return err
		}

		remaining := round.RemainingCount()
		events = append(events, pendingEvent{
			roundID:   round.ID,
			eventType: EventRoundElimination,
			payload: EliminationPayload{
				RoundID:   round.ID,
				VictimID:  victimID,
				Position:  *victim.EliminationPosition,
				Remaining: remaining,
			},
		})

		// Последний невыбывший — победитель; завершаем, не вытягивая его имя
		if remaining == 1 {
			if err := s.completeLocked(tx, round, &events); err != nil {
				return err
			}
		}

		if err := s.roundRepo.UpdateWithVersion(tx, round); err != nil {
			return mapStoreErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	if round.Status == entity.RoundStatusCompleted {
		go s.NotifyWinner(round)
	}
	return round, nil
}

// Complete завершает in_progress-раунд с единственным невыбывшим участником.
// Обычно вызывается из EliminateNext в той же транзакции; отдельный вызов
// нужен восстановлению после рестарта, если раунд завис перед завершением.
func (s *RoundService) Complete(roundID uint) (*entity.Round, error) {
	var round *entity.Round
	var events []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = s.roundRepo.GetForUpdate(tx, roundID)
		if err != nil {
			return err
		}
		if !round.IsInProgress() {
			return fmt.Errorf("%w: round %d is not in progress (status=%s)",
				apperrors.ErrInvalidState, roundID, round.Status)
		}
		if err := s.completeLocked(tx, round, &events); err != nil {
			return err
		}
		return mapStoreErr(s.roundRepo.UpdateWithVersion(tx, round))
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	go s.NotifyWinner(round)
	return round, nil
}

// completeLocked выплачивает призы и переводит раунд в completed.
// Вызывается под блокировкой строки раунда; статус сохраняет вызывающая сторона.
func (s *RoundService) completeLocked(tx *gorm.DB, round *entity.Round, events *[]pendingEvent) error {
	winner := round.RemainingOne()
	if winner == nil {
		return fmt.Errorf("%w: round %d does not have exactly one remaining participant",
			apperrors.ErrInvalidState, round.ID)
	}

	if round.WinnerPool > 0 {
		if _, err := s.ledger.Credit(tx, winner.UserID, round.WinnerPool, round.ID, entity.TxKindPrizeWin); err != nil {
			return err
		}
	}
	if round.AdminPool > 0 {
		if _, err := s.ledger.Credit(tx, round.AdminID, round.AdminPool, round.ID, entity.TxKindAdminCommission); err != nil {
			return err
		}
	}
	if round.AppPool > 0 {
		if _, err := s.ledger.RecordAppFee(tx, round.ID, round.AppPool); err != nil {
			return err
		}
	}

	now := time.Now()
	winnerID := winner.UserID
	round.Status = entity.RoundStatusCompleted
	round.CompletedAt = &now
	round.WinnerID = &winnerID

	// Игровая статистика участников — в этой же транзакции
	ids := make([]uint, 0, len(round.Participants))
	for i := range round.Participants {
		ids = append(ids, round.Participants[i].UserID)
	}
	if err := tx.Model(&entity.User{}).Where("id IN ?", ids).
		UpdateColumn("games_played", gorm.Expr("games_played + 1")).Error; err != nil {
		return err
	}
	if err := tx.Model(&entity.User{}).Where("id = ?", winnerID).
		Updates(map[string]interface{}{
			"wins_count":      gorm.Expr("wins_count + 1"),
			"total_prize_won": gorm.Expr("total_prize_won + ?", round.WinnerPool),
		}).Error; err != nil {
		return err
	}

	log.Printf("[RoundService] Раунд ID=%d завершен: победитель ID=%d, приз %d",
		round.ID, winnerID, round.WinnerPool)

	*events = append(*events, pendingEvent{
		roundID:   round.ID,
		eventType: EventRoundCompleted,
		payload: RoundCompletedPayload{
			RoundID:    round.ID,
			WinnerID:   winnerID,
			WinnerPool: round.WinnerPool,
			AdminPool:  round.AdminPool,
			AppPool:    round.AppPool,
		},
	})
	*events = append(*events, pendingEvent{
		userID:    winnerID,
		eventType: EventUserWon,
		payload: UserWonPayload{
			RoundID: round.ID,
			Prize:   round.WinnerPool,
		},
	})
	return nil
}

// Abort отменяет waiting-раунд с возвратом взносов. Выбывания обязывают:
// раунд в in_progress отменить нельзя. Повторный вызов — INVALID_STATE,
// возвраты не дублируются.
func (s *RoundService) Abort(roundID uint, reason string) (*entity.Round, error) {
	var round *entity.Round
	var events []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = s.roundRepo.GetForUpdate(tx, roundID)
		if err != nil {
			return err
		}
		return s.abortLocked(tx, round, reason, &events)
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	return round, nil
}

// StartByAdmin запускает раунд досрочно, не дожидаясь autoStartAt
func (s *RoundService) StartByAdmin(adminID, roundID uint) (*entity.Round, error) {
	admin, err := s.userRepo.GetByID(adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, fmt.Errorf("%w: only admin can start rounds", apperrors.ErrForbidden)
	}
	return s.Start(roundID)
}

// AbortByAdmin отменяет раунд по запросу админа
func (s *RoundService) AbortByAdmin(adminID, roundID uint) (*entity.Round, error) {
	admin, err := s.userRepo.GetByID(adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, fmt.Errorf("%w: only admin can abort rounds", apperrors.ErrForbidden)
	}
	return s.Abort(roundID, entity.AbortReasonAdminRequest)
}

// abortLocked выполняет отмену под уже взятой блокировкой строки раунда
func (s *RoundService) abortLocked(tx *gorm.DB, round *entity.Round, reason string, events *[]pendingEvent) error {
	if !round.IsWaiting() {
		return fmt.Errorf("%w: round %d cannot be aborted from status %s",
			apperrors.ErrInvalidState, round.ID, round.Status)
	}

	var refunded int64
	for i := range round.Participants {
		p := &round.Participants[i]
		if _, err := s.ledger.Credit(tx, p.UserID, p.EntryFeePaid, round.ID, entity.TxKindRefund); err != nil {
			return err
		}
		refunded += p.EntryFeePaid
	}

	now := time.Now()
	round.Status = entity.RoundStatusAborted
	round.CompletedAt = &now
	round.AbortReason = reason
	round.ZeroPools()

	if err := s.roundRepo.UpdateWithVersion(tx, round); err != nil {
		return mapStoreErr(err)
	}

	log.Printf("[RoundService] Раунд ID=%d отменен (%s), возвращено %d монет %d участникам",
		round.ID, reason, refunded, len(round.Participants))

	*events = append(*events, pendingEvent{
		roundID:   round.ID,
		eventType: EventRoundAborted,
		payload: RoundAbortedPayload{
			RoundID:  round.ID,
			Reason:   reason,
			Refunded: refunded,
		},
	})
	return nil
}

// AutoStart обрабатывает истекший дедлайн автостарта: при достаточном числе
// участников раунд стартует, иначе отменяется с возвратом взносов.
// Раунд, уже покинувший waiting, пропускается без ошибки.
func (s *RoundService) AutoStart(roundID uint) (*entity.Round, error) {
	var round *entity.Round
	var events []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = s.roundRepo.GetForUpdate(tx, roundID)
		if err != nil {
			return err
		}
		if !round.IsWaiting() {
			// Кто-то уже обработал этот раунд
			return nil
		}
		if len(round.Participants) >= round.MinParticipants {
			return s.startLocked(tx, round, &events)
		}
		return s.abortLocked(tx, round, entity.AbortReasonInsufficientParticipants, &events)
	})
	if err != nil {
		return nil, err
	}

	s.publish(events)
	return round, nil
}

// GetByID возвращает раунд с участниками
func (s *RoundService) GetByID(roundID uint) (*entity.Round, error) {
	return s.roundRepo.GetByID(roundID)
}

// GetActive возвращает текущий активный раунд
func (s *RoundService) GetActive() (*entity.Round, error) {
	return s.roundRepo.GetActive()
}

// ListHistory возвращает историю раундов постранично
func (s *RoundService) ListHistory(status string, limit, offset int) ([]entity.Round, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.roundRepo.ListHistory(repository.RoundFilters{Status: status}, limit, offset)
}

// CanJoin проверяет без мутаций, может ли аккаунт вступить в раунд.
// Возвращает false с причиной из таксономии; снимок состояния может
// устареть к моменту фактического Join.
func (s *RoundService) CanJoin(userID, roundID uint) (bool, string, error) {
	round, err := s.roundRepo.GetByID(roundID)
	if err != nil {
		return false, "", err
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, "", err
	}

	switch {
	case !round.IsWaiting():
		return false, apperrors.Kind(apperrors.ErrConflict), nil
	case round.AdminID == userID:
		return false, apperrors.Kind(apperrors.ErrForbidden), nil
	case round.HasParticipant(userID):
		return false, apperrors.Kind(apperrors.ErrConflict), nil
	case round.IsFull():
		return false, apperrors.Kind(apperrors.ErrConflict), nil
	case !user.Active:
		return false, apperrors.Kind(apperrors.ErrAccountInactive), nil
	case user.Balance < round.EntryFee:
		return false, apperrors.Kind(apperrors.ErrInsufficientFunds), nil
	}
	return true, "", nil
}

// ListUserRounds возвращает раунды, в которых участвовал аккаунт
func (s *RoundService) ListUserRounds(userID uint, limit, offset int) ([]entity.Round, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.roundRepo.ListByParticipant(userID, limit, offset)
}

// NotifyWinner отправляет письмо победителю. Вызывается после коммита,
// сбой почты не влияет на результат раунда.
func (s *RoundService) NotifyWinner(round *entity.Round) {
	if s.mailer == nil || round.WinnerID == nil {
		return
	}
	winner, err := s.userRepo.GetByID(*round.WinnerID)
	if err != nil {
		log.Printf("[RoundService] Не удалось загрузить победителя ID=%d: %v", *round.WinnerID, err)
		return
	}
	if err := s.mailer.SendWinnerEmail(winner.Email, winner.Username, round.ID, round.WinnerPool); err != nil {
		log.Printf("[RoundService] Ошибка отправки письма победителю ID=%d: %v", winner.ID, err)
	}
}

// publish рассылает накопленные события после коммита транзакции
func (s *RoundService) publish(events []pendingEvent) {
	for _, ev := range events {
		var err error
		switch {
		case ev.userID != 0:
			err = s.publisher.SendEventToUser(ev.userID, ev.eventType, ev.payload)
		case ev.global:
			err = s.publisher.BroadcastEvent(ev.eventType, ev.payload)
		default:
			err = s.publisher.BroadcastToRound(ev.roundID, ev.eventType, ev.payload)
		}
		if err != nil {
			log.Printf("[RoundService] Ошибка публикации события %s: %v", ev.eventType, err)
		}
	}
}

// summaryPayload строит сводку раунда для событий лобби
func summaryPayload(round *entity.Round) RoundSummaryPayload {
	return RoundSummaryPayload{
		RoundID:          round.ID,
		Status:           round.Status,
		EntryFee:         round.EntryFee,
		MinParticipants:  round.MinParticipants,
		MaxParticipants:  round.MaxParticipants,
		ParticipantCount: len(round.Participants),
		AutoStartAt:      round.AutoStartAt,
	}
}

// mapStoreErr переводит ошибки хранилища в закрытую таксономию
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("%w: round was modified concurrently, retry", apperrors.ErrConflict)
	}
	if errors.Is(err, repository.ErrActiveRoundExists) {
		return fmt.Errorf("%w: another round is already active", apperrors.ErrConflict)
	}
	return err
}
