package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_MapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{ErrValidation, "VALIDATION"},
		{ErrUnauthorized, "AUTHENTICATION"},
		{ErrForbidden, "AUTHORIZATION"},
		{ErrNotFound, "NOT_FOUND"},
		{ErrConflict, "CONFLICT"},
		{ErrInvalidState, "INVALID_STATE"},
		{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
		{ErrAccountInactive, "ACCOUNT_INACTIVE"},
		{ErrNotEnoughParticipants, "NOT_ENOUGH_PARTICIPANTS"},
		{ErrInternal, "INTERNAL"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.kind, Kind(tc.err))
	}
}

func TestKind_UnwrapsWrappedErrors(t *testing.T) {
	// Бизнес-логика оборачивает сентинелы через %w; Kind обязан их находить
	wrapped := fmt.Errorf("%w: round 7 is full", ErrConflict)
	assert.Equal(t, "CONFLICT", Kind(wrapped))

	twiceWrapped := fmt.Errorf("join failed: %w", wrapped)
	assert.Equal(t, "CONFLICT", Kind(twiceWrapped))
}

func TestKind_UnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, "INTERNAL", Kind(fmt.Errorf("something odd")))
}
