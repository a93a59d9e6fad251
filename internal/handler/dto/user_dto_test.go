package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
)

func TestNewUserResponse_CarriesGameStats(t *testing.T) {
	now := time.Now()
	user := &entity.User{
		ID:            7,
		Username:      "lucky",
		Email:         "lucky@example.com",
		Role:          entity.RoleUser,
		Balance:       1500,
		Active:        true,
		GamesPlayed:   12,
		WinsCount:     3,
		TotalPrizeWon: 630,
		CreatedAt:     now,
	}

	resp := NewUserResponse(user)

	assert.Equal(t, uint(7), resp.ID)
	assert.Equal(t, int64(1500), resp.Balance)
	// Счетчики игр переносятся без усечения, тип совпадает с сущностью
	assert.Equal(t, int64(12), resp.GamesPlayed)
	assert.Equal(t, int64(3), resp.WinsCount)
	assert.Equal(t, int64(630), resp.TotalPrizeWon)
	assert.Equal(t, now, resp.CreatedAt)
}

func TestNewLeaderboardResponse_RanksFromOffset(t *testing.T) {
	users := []entity.User{
		{ID: 1, Username: "first", WinsCount: 9, GamesPlayed: 20, TotalPrizeWon: 2000},
		{ID: 2, Username: "second", WinsCount: 5, GamesPlayed: 18, TotalPrizeWon: 900},
	}

	resp := NewLeaderboardResponse(users, 42, 10)

	entries := resp["leaderboard"].([]LeaderboardEntry)
	require.Len(t, entries, 2)
	assert.Equal(t, 11, entries[0].Rank)
	assert.Equal(t, 12, entries[1].Rank)
	assert.Equal(t, int64(9), entries[0].WinsCount)
	assert.Equal(t, int64(20), entries[0].GamesPlayed)
	assert.Equal(t, int64(42), resp["total"])
}
