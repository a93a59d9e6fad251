package dto

import (
	"time"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
)

// UserResponse представляет аккаунт для ответа клиенту
type UserResponse struct {
	ID            uint       `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Balance       int64      `json:"balance"`
	Active        bool       `json:"active"`
	GamesPlayed   int64      `json:"games_played"`
	WinsCount     int64      `json:"wins_count"`
	TotalPrizeWon int64      `json:"total_prize_won"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewUserResponse создает DTO аккаунта
func NewUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Role:          user.Role,
		Balance:       user.Balance,
		Active:        user.Active,
		GamesPlayed:   user.GamesPlayed,
		WinsCount:     user.WinsCount,
		TotalPrizeWon: user.TotalPrizeWon,
		LastLogin:     user.LastLogin,
		CreatedAt:     user.CreatedAt,
	}
}

// AuthResponse представляет результат регистрации или входа
type AuthResponse struct {
	User  *UserResponse `json:"user"`
	Token string        `json:"token"`
}

// LeaderboardEntry представляет строку таблицы лидеров
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	WinsCount     int64  `json:"wins_count"`
	GamesPlayed   int64  `json:"games_played"`
	TotalPrizeWon int64  `json:"total_prize_won"`
}

// NewLeaderboardResponse создает таблицу лидеров с абсолютными рангами
func NewLeaderboardResponse(users []entity.User, total int64, offset int) map[string]interface{} {
	entries := make([]LeaderboardEntry, 0, len(users))
	for i := range users {
		u := &users[i]
		entries = append(entries, LeaderboardEntry{
			Rank:          offset + i + 1,
			UserID:        u.ID,
			Username:      u.Username,
			WinsCount:     u.WinsCount,
			GamesPlayed:   u.GamesPlayed,
			TotalPrizeWon: u.TotalPrizeWon,
		})
	}
	return map[string]interface{}{
		"leaderboard": entries,
		"total":       total,
	}
}

// TransactionResponse представляет запись журнала для ответа клиенту
type TransactionResponse struct {
	ID            uint      `json:"id"`
	RoundID       uint      `json:"round_id"`
	Kind          string    `json:"kind"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewTransactionListResponse создает пагинированный журнал транзакций
func NewTransactionListResponse(records []entity.Transaction, total int64, limit, offset int) map[string]interface{} {
	items := make([]TransactionResponse, 0, len(records))
	for i := range records {
		r := &records[i]
		items = append(items, TransactionResponse{
			ID:            r.ID,
			RoundID:       r.RoundID,
			Kind:          r.Kind,
			Amount:        r.Amount,
			BalanceBefore: r.BalanceBefore,
			BalanceAfter:  r.BalanceAfter,
			CreatedAt:     r.CreatedAt,
		})
	}
	return map[string]interface{}{
		"transactions": items,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	}
}
