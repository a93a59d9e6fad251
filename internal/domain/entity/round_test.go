package entity

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRound(participantIDs ...uint) *Round {
	round := &Round{
		ID:              1,
		AdminID:         100,
		Status:          RoundStatusWaiting,
		EntryFee:        100,
		MinParticipants: 3,
		MaxParticipants: 10,
		WinnerPct:       70,
		AdminPct:        20,
		AppPct:          10,
	}
	for _, id := range participantIDs {
		round.Participants = append(round.Participants, Participant{
			RoundID:      round.ID,
			UserID:       id,
			EntryFeePaid: round.EntryFee,
		})
	}
	return round
}

func TestRound_SplitFee_ExactSum(t *testing.T) {
	// Сумма долей обязана равняться взносу при любых значениях:
	// остаток целочисленного деления уходит победителю
	cases := []struct {
		name                        string
		winner, admin, app          int
		fee                         int64
		expWinner, expAdmin, expApp int64
	}{
		{"ровное деление", 70, 20, 10, 100, 70, 20, 10},
		{"остаток к победителю", 70, 20, 10, 99, 71, 19, 9},
		{"взнос 1", 70, 20, 10, 1, 1, 0, 0},
		{"все победителю", 100, 0, 0, 55, 55, 0, 0},
		{"треть каждому", 33, 33, 34, 100, 33, 33, 34},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			round := &Round{WinnerPct: tc.winner, AdminPct: tc.admin, AppPct: tc.app}

			w, a, p := round.SplitFee(tc.fee)

			assert.Equal(t, tc.expWinner, w)
			assert.Equal(t, tc.expAdmin, a)
			assert.Equal(t, tc.expApp, p)
			assert.Equal(t, tc.fee, w+a+p, "доли обязаны в сумме давать взнос")
		})
	}
}

func TestRound_AddEntryFee_PoolInvariant(t *testing.T) {
	// Arrange: три взноса по 99 — деление с остатком на каждом
	round := makeRound(1, 2, 3)
	round.EntryFee = 99

	// Act
	for range round.Participants {
		round.AddEntryFee(round.EntryFee)
	}

	// Assert: пулы в сумме равны собранным взносам
	total := round.EntryFee * int64(len(round.Participants))
	assert.Equal(t, total, round.WinnerPool+round.AdminPool+round.AppPool)
}

func TestRound_StatusHelpers(t *testing.T) {
	round := makeRound()

	assert.True(t, round.IsWaiting())
	assert.True(t, round.IsActive())
	assert.False(t, round.IsTerminal())

	round.Status = RoundStatusInProgress
	assert.True(t, round.IsInProgress())
	assert.True(t, round.IsActive())

	round.Status = RoundStatusCompleted
	assert.True(t, round.IsTerminal())
	assert.False(t, round.IsActive())

	round.Status = RoundStatusAborted
	assert.True(t, round.IsTerminal())
}

func TestRound_HasParticipantAndIsFull(t *testing.T) {
	round := makeRound(1, 2, 3)
	round.MaxParticipants = 3

	assert.True(t, round.HasParticipant(2))
	assert.False(t, round.HasParticipant(42))
	assert.True(t, round.IsFull())

	round.MaxParticipants = 5
	assert.False(t, round.IsFull())
}

func TestRound_MarkEliminated_PositionsAndQueue(t *testing.T) {
	// Arrange: очередь выбывания 3 -> 1 -> 2, задуманный победитель — 2
	round := makeRound(1, 2, 3)
	round.Status = RoundStatusInProgress
	round.EliminationOrder = pq.Int64Array{3, 1, 2}
	now := time.Now()

	// Act & Assert: первое выбывание
	victimID, ok := round.NextVictimID()
	require.True(t, ok)
	assert.Equal(t, uint(3), victimID)

	p := round.MarkEliminated(victimID, now)
	require.NotNil(t, p)
	assert.True(t, p.Eliminated)
	assert.Equal(t, 1, *p.EliminationPosition)
	assert.Equal(t, 2, round.RemainingCount())
	assert.Nil(t, round.RemainingOne(), "два невыбывших — единственного еще нет")

	// Второе выбывание оставляет ровно одного
	victimID, ok = round.NextVictimID()
	require.True(t, ok)
	assert.Equal(t, uint(1), victimID)

	p = round.MarkEliminated(victimID, now)
	require.NotNil(t, p)
	assert.Equal(t, 2, *p.EliminationPosition)

	winner := round.RemainingOne()
	require.NotNil(t, winner)
	assert.Equal(t, uint(2), winner.UserID, "последний элемент очереди не вытягивается")

	// Очередь еще хранит имя победителя, но раунд уже должен завершаться
	assert.True(t, round.HasPendingElimination())
}

func TestRound_MarkEliminated_AlreadyEliminated(t *testing.T) {
	round := makeRound(1, 2, 3)
	round.EliminationOrder = pq.Int64Array{1, 2, 3}
	now := time.Now()

	require.NotNil(t, round.MarkEliminated(1, now))

	// Повторная отметка того же участника игнорируется
	assert.Nil(t, round.MarkEliminated(1, now))
	assert.Equal(t, 2, round.RemainingCount())
}

func TestRound_NextVictimID_ExhaustedQueue(t *testing.T) {
	round := makeRound(1, 2)
	round.EliminationOrder = pq.Int64Array{1, 2}
	round.EliminationIndex = 2

	_, ok := round.NextVictimID()
	assert.False(t, ok)
	assert.False(t, round.HasPendingElimination())
}

func TestRound_ZeroPools(t *testing.T) {
	round := makeRound(1, 2, 3)
	round.AddEntryFee(100)
	require.NotZero(t, round.WinnerPool)

	round.ZeroPools()

	assert.Zero(t, round.WinnerPool)
	assert.Zero(t, round.AdminPool)
	assert.Zero(t, round.AppPool)
}

func TestRound_TotalCollected(t *testing.T) {
	round := makeRound(1, 2, 3)
	assert.Equal(t, int64(300), round.TotalCollected())
}
