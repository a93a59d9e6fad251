package dto

import (
	"time"

	"github.com/yourusername/spinwheel-api/internal/domain/entity"
)

// ParticipantResponse представляет участника раунда для ответа клиенту
type ParticipantResponse struct {
	UserID              uint       `json:"user_id"`
	Username            string     `json:"username"`
	EntryFeePaid        int64      `json:"entry_fee_paid"`
	JoinedAt            time.Time  `json:"joined_at"`
	Eliminated          bool       `json:"eliminated"`
	EliminatedAt        *time.Time `json:"eliminated_at,omitempty"`
	EliminationPosition *int       `json:"elimination_position,omitempty"`
}

// RoundResponse представляет раунд для ответа клиенту.
// Порядок выбывания не раскрывается до терминального статуса: будущие
// жертвы и задуманный победитель не должны быть видны заранее.
type RoundResponse struct {
	ID               uint                  `json:"id"`
	AdminID          uint                  `json:"admin_id"`
	Status           string                `json:"status"`
	EntryFee         int64                 `json:"entry_fee"`
	MinParticipants  int                   `json:"min_participants"`
	MaxParticipants  int                   `json:"max_participants"`
	WinnerPool       int64                 `json:"winner_pool"`
	AdminPool        int64                 `json:"admin_pool"`
	AppPool          int64                 `json:"app_pool"`
	Participants     []ParticipantResponse `json:"participants,omitempty"`
	EliminationOrder []int64               `json:"elimination_order,omitempty"`
	AutoStartAt      time.Time             `json:"auto_start_at"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	WinnerID         *uint                 `json:"winner_id,omitempty"`
	AbortReason      string                `json:"abort_reason,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// NewRoundResponse создает DTO раунда
func NewRoundResponse(round *entity.Round) *RoundResponse {
	resp := &RoundResponse{
		ID:              round.ID,
		AdminID:         round.AdminID,
		Status:          round.Status,
		EntryFee:        round.EntryFee,
		MinParticipants: round.MinParticipants,
		MaxParticipants: round.MaxParticipants,
		WinnerPool:      round.WinnerPool,
		AdminPool:       round.AdminPool,
		AppPool:         round.AppPool,
		AutoStartAt:     round.AutoStartAt,
		StartedAt:       round.StartedAt,
		CompletedAt:     round.CompletedAt,
		WinnerID:        round.WinnerID,
		AbortReason:     round.AbortReason,
		CreatedAt:       round.CreatedAt,
	}
	for i := range round.Participants {
		p := &round.Participants[i]
		resp.Participants = append(resp.Participants, ParticipantResponse{
			UserID:              p.UserID,
			Username:            p.Username,
			EntryFeePaid:        p.EntryFeePaid,
			JoinedAt:            p.JoinedAt,
			Eliminated:          p.Eliminated,
			EliminatedAt:        p.EliminatedAt,
			EliminationPosition: p.EliminationPosition,
		})
	}
	if round.IsTerminal() {
		resp.EliminationOrder = []int64(round.EliminationOrder)
	}
	return resp
}

// PaginatedRoundResponse представляет пагинированный список раундов
type PaginatedRoundResponse struct {
	Rounds []*RoundResponse `json:"rounds"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// NewPaginatedRoundResponse создает пагинированный список DTO раундов
func NewPaginatedRoundResponse(rounds []entity.Round, total int64, limit, offset int) *PaginatedRoundResponse {
	resp := &PaginatedRoundResponse{
		Rounds: make([]*RoundResponse, 0, len(rounds)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range rounds {
		resp.Rounds = append(resp.Rounds, NewRoundResponse(&rounds[i]))
	}
	return resp
}
