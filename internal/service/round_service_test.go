package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/spinwheel-api/internal/config"
	"github.com/yourusername/spinwheel-api/internal/domain/entity"
	"github.com/yourusername/spinwheel-api/internal/domain/repository"
	apperrors "github.com/yourusername/spinwheel-api/internal/pkg/errors"
)

// ============================================================================
// Моки репозиториев и публикатора событий
// ============================================================================

// MockUserRepository реализует repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateLastLogin(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUserRepository) SetActive(userID uint, active bool) error {
	args := m.Called(userID, active)
	return args.Error(0)
}

func (m *MockUserRepository) GetForUpdate(tx *gorm.DB, id uint) (*entity.User, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]entity.User), args.Get(1).(int64), args.Error(2)
}

// MockRoundRepository реализует repository.RoundRepository
type MockRoundRepository struct {
	mock.Mock
}

func (m *MockRoundRepository) Create(round *entity.Round) error {
	args := m.Called(round)
	return args.Error(0)
}

func (m *MockRoundRepository) GetByID(id uint) (*entity.Round, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Round), args.Error(1)
}

func (m *MockRoundRepository) GetActive() (*entity.Round, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Round), args.Error(1)
}

func (m *MockRoundRepository) GetForUpdate(tx *gorm.DB, id uint) (*entity.Round, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Round), args.Error(1)
}

func (m *MockRoundRepository) UpdateWithVersion(tx *gorm.DB, round *entity.Round) error {
	args := m.Called(tx, round)
	return args.Error(0)
}

func (m *MockRoundRepository) AppendParticipant(tx *gorm.DB, participant *entity.Participant) error {
	args := m.Called(tx, participant)
	return args.Error(0)
}

func (m *MockRoundRepository) UpdateParticipant(tx *gorm.DB, participant *entity.Participant) error {
	args := m.Called(tx, participant)
	return args.Error(0)
}

func (m *MockRoundRepository) GetDueWaiting(now time.Time) ([]entity.Round, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Round), args.Error(1)
}

func (m *MockRoundRepository) GetInProgress() ([]entity.Round, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Round), args.Error(1)
}

func (m *MockRoundRepository) ListHistory(filters repository.RoundFilters, limit, offset int) ([]entity.Round, int64, error) {
	args := m.Called(filters, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]entity.Round), args.Get(1).(int64), args.Error(2)
}

func (m *MockRoundRepository) ListByParticipant(userID uint, limit, offset int) ([]entity.Round, int64, error) {
	args := m.Called(userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]entity.Round), args.Get(1).(int64), args.Error(2)
}

// capturedEvent — событие, перехваченное тестовым публикатором
type capturedEvent struct {
	eventType string
	roundID   uint
	userID    uint
	global    bool
	payload   interface{}
}

// CapturingPublisher записывает все опубликованные события
type CapturingPublisher struct {
	events []capturedEvent
}

func (p *CapturingPublisher) BroadcastEvent(eventType string, payload interface{}) error {
	p.events = append(p.events, capturedEvent{eventType: eventType, global: true, payload: payload})
	return nil
}

func (p *CapturingPublisher) BroadcastToRound(roundID uint, eventType string, payload interface{}) error {
	p.events = append(p.events, capturedEvent{eventType: eventType, roundID: roundID, payload: payload})
	return nil
}

func (p *CapturingPublisher) SendEventToUser(userID uint, eventType string, payload interface{}) error {
	p.events = append(p.events, capturedEvent{eventType: eventType, userID: userID, payload: payload})
	return nil
}

// MockMailer реализует WinnerNotifier
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendWinnerEmail(email, username string, roundID uint, prize int64) error {
	args := m.Called(email, username, roundID, prize)
	return args.Error(0)
}

// ============================================================================
// Хелперы
// ============================================================================

func testGameConfig() *config.GameConfig {
	return &config.GameConfig{
		InitialBalance:        1000,
		MinParticipants:       3,
		AutoStartDelaySec:     300,
		EliminationIntervalMs: 3000,
		CountdownSeconds:      10,
		WinnerPct:             70,
		AdminPct:              20,
		AppPct:                10,
	}
}

func newTestRoundService(
	roundRepo *MockRoundRepository,
	userRepo *MockUserRepository,
	publisher EventPublisher,
	mailer WinnerNotifier,
) *RoundService {
	// db nil: тесты покрывают пути до открытия транзакции
	return NewRoundService(nil, roundRepo, userRepo, nil, publisher, mailer, testGameConfig())
}

func adminUser(id uint) *entity.User {
	return &entity.User{ID: id, Username: "admin", Email: "admin@example.com", Role: entity.RoleAdmin, Active: true}
}

func regularUser(id uint) *entity.User {
	return &entity.User{ID: id, Username: "player", Email: "player@example.com", Role: entity.RoleUser, Active: true}
}

// ============================================================================
// CreateRound
// ============================================================================

func TestCreateRound_ForbiddenForNonAdmin(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", uint(5)).Return(regularUser(5), nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	round, err := svc.CreateRound(5, 100, 10)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	assert.Nil(t, round)
	roundRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestCreateRound_ValidationErrors(t *testing.T) {
	cases := []struct {
		name            string
		entryFee        int64
		maxParticipants int
	}{
		{"нулевой взнос", 0, 10},
		{"отрицательный взнос", -5, 10},
		{"максимум меньше трех", 100, 2},
		{"максимум выше потолка", 100, 1001},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roundRepo := new(MockRoundRepository)
			userRepo := new(MockUserRepository)
			userRepo.On("GetByID", uint(1)).Return(adminUser(1), nil)

			svc := newTestRoundService(roundRepo, userRepo, nil, nil)

			_, err := svc.CreateRound(1, tc.entryFee, tc.maxParticipants)

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			roundRepo.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestCreateRound_MaxBelowStartMinimum(t *testing.T) {
	// max_participants валиден сам по себе, но ниже минимума автостарта
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", uint(1)).Return(adminUser(1), nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)
	svc.gameCfg.MinParticipants = 5

	_, err := svc.CreateRound(1, 100, 4)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCreateRound_ConflictWhenActiveRoundExists(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", uint(1)).Return(adminUser(1), nil)
	roundRepo.On("Create", mock.Anything).Return(repository.ErrActiveRoundExists)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	_, err := svc.CreateRound(1, 100, 10)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestCreateRound_Success(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	publisher := &CapturingPublisher{}

	userRepo.On("GetByID", uint(1)).Return(adminUser(1), nil)
	roundRepo.On("Create", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.Round).ID = 42
	}).Return(nil)

	svc := newTestRoundService(roundRepo, userRepo, publisher, nil)
	before := time.Now()

	round, err := svc.CreateRound(1, 100, 10)

	require.NoError(t, err)
	assert.Equal(t, entity.RoundStatusWaiting, round.Status)
	assert.Equal(t, int64(100), round.EntryFee)
	assert.Equal(t, 3, round.MinParticipants)
	assert.Equal(t, 10, round.MaxParticipants)
	// Проценты фиксируются из конфигурации на момент создания
	assert.Equal(t, 70, round.WinnerPct)
	assert.Equal(t, 20, round.AdminPct)
	assert.Equal(t, 10, round.AppPct)
	assert.Equal(t, 3000, round.EliminationIntervalMs)

	// Дедлайн автостарта отсчитывается от момента создания
	expectedStart := before.Add(300 * time.Second)
	assert.WithinDuration(t, expectedStart, round.AutoStartAt, 2*time.Second)

	// Событие round.created уходит всем клиентам после создания
	require.Len(t, publisher.events, 1)
	assert.Equal(t, EventRoundCreated, publisher.events[0].eventType)
	assert.True(t, publisher.events[0].global)
	summary := publisher.events[0].payload.(RoundSummaryPayload)
	assert.Equal(t, uint(42), summary.RoundID)
}

// ============================================================================
// StartByAdmin / AbortByAdmin
// ============================================================================

func TestStartByAdmin_ForbiddenForNonAdmin(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", uint(5)).Return(regularUser(5), nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	_, err := svc.StartByAdmin(5, 42)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestAbortByAdmin_ForbiddenForNonAdmin(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", uint(5)).Return(regularUser(5), nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	_, err := svc.AbortByAdmin(5, 42)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

// ============================================================================
// Запросы чтения
// ============================================================================

func TestListHistory_ClampsPagination(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)

	// Некорректные limit/offset приводятся к значениям по умолчанию
	roundRepo.On("ListHistory", repository.RoundFilters{Status: "completed"}, 20, 0).
		Return([]entity.Round{}, int64(0), nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	_, _, err := svc.ListHistory("completed", -1, -5)

	require.NoError(t, err)
	roundRepo.AssertExpectations(t)
}

func TestListUserRounds_ClampsLimit(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)

	roundRepo.On("ListByParticipant", uint(7), 20, 0).
		Return([]entity.Round{}, int64(0), nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	_, _, err := svc.ListUserRounds(7, 500, 0)

	require.NoError(t, err)
	roundRepo.AssertExpectations(t)
}

// ============================================================================
// CanJoin
// ============================================================================

func TestCanJoin_Matrix(t *testing.T) {
	waiting := func() *entity.Round {
		return &entity.Round{
			ID:              42,
			AdminID:         1,
			Status:          entity.RoundStatusWaiting,
			EntryFee:        100,
			MaxParticipants: 3,
		}
	}

	cases := []struct {
		name      string
		round     func() *entity.Round
		user      *entity.User
		expOK     bool
		expReason string
	}{
		{
			"вступление возможно",
			waiting,
			&entity.User{ID: 7, Active: true, Balance: 100},
			true, "",
		},
		{
			"раунд уже идет",
			func() *entity.Round {
				r := waiting()
				r.Status = entity.RoundStatusInProgress
				return r
			},
			&entity.User{ID: 7, Active: true, Balance: 100},
			false, "CONFLICT",
		},
		{
			"создатель не участвует в своем раунде",
			waiting,
			&entity.User{ID: 1, Active: true, Balance: 100},
			false, "AUTHORIZATION",
		},
		{
			"повторное вступление",
			func() *entity.Round {
				r := waiting()
				r.Participants = []entity.Participant{{RoundID: 42, UserID: 7}}
				return r
			},
			&entity.User{ID: 7, Active: true, Balance: 100},
			false, "CONFLICT",
		},
		{
			"раунд заполнен",
			func() *entity.Round {
				r := waiting()
				r.Participants = []entity.Participant{
					{RoundID: 42, UserID: 2}, {RoundID: 42, UserID: 3}, {RoundID: 42, UserID: 4},
				}
				return r
			},
			&entity.User{ID: 7, Active: true, Balance: 100},
			false, "CONFLICT",
		},
		{
			"аккаунт деактивирован",
			waiting,
			&entity.User{ID: 7, Active: false, Balance: 100},
			false, "ACCOUNT_INACTIVE",
		},
		{
			"недостаточно монет",
			waiting,
			&entity.User{ID: 7, Active: true, Balance: 99},
			false, "INSUFFICIENT_FUNDS",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roundRepo := new(MockRoundRepository)
			userRepo := new(MockUserRepository)
			roundRepo.On("GetByID", uint(42)).Return(tc.round(), nil)
			userRepo.On("GetByID", tc.user.ID).Return(tc.user, nil)

			svc := newTestRoundService(roundRepo, userRepo, nil, nil)

			ok, reason, err := svc.CanJoin(tc.user.ID, 42)

			require.NoError(t, err)
			assert.Equal(t, tc.expOK, ok)
			assert.Equal(t, tc.expReason, reason)
		})
	}
}

func TestCanJoin_UnknownRound(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	roundRepo.On("GetByID", uint(404)).Return(nil, apperrors.ErrNotFound)

	svc := newTestRoundService(roundRepo, userRepo, nil, nil)

	_, _, err := svc.CanJoin(7, 404)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	userRepo.AssertNotCalled(t, "GetByID", mock.Anything)
}

// ============================================================================
// NotifyWinner
// ============================================================================

func TestNotifyWinner_SendsEmail(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	mailer := new(MockMailer)

	winnerID := uint(9)
	round := &entity.Round{ID: 42, WinnerID: &winnerID, WinnerPool: 210}

	winner := &entity.User{ID: 9, Username: "lucky", Email: "lucky@example.com"}
	userRepo.On("GetByID", uint(9)).Return(winner, nil)
	mailer.On("SendWinnerEmail", "lucky@example.com", "lucky", uint(42), int64(210)).Return(nil)

	svc := newTestRoundService(roundRepo, userRepo, nil, mailer)

	svc.NotifyWinner(round)

	mailer.AssertExpectations(t)
}

func TestNotifyWinner_SkipsWithoutWinner(t *testing.T) {
	roundRepo := new(MockRoundRepository)
	userRepo := new(MockUserRepository)
	mailer := new(MockMailer)

	svc := newTestRoundService(roundRepo, userRepo, nil, mailer)

	svc.NotifyWinner(&entity.Round{ID: 42})

	mailer.AssertNotCalled(t, "SendWinnerEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	userRepo.AssertNotCalled(t, "GetByID", mock.Anything)
}

// ============================================================================
// mapStoreErr
// ============================================================================

func TestMapStoreErr(t *testing.T) {
	assert.NoError(t, mapStoreErr(nil))

	err := mapStoreErr(repository.ErrVersionConflict)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	err = mapStoreErr(repository.ErrActiveRoundExists)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	// Прочие ошибки проходят без изменений
	plain := fmt.Errorf("disk on fire")
	assert.Equal(t, plain, mapStoreErr(plain))
}
