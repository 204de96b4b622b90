package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInvalidTransitionError_Details(t *testing.T) {
	err := NewInvalidTransitionError("under_review", "confirmed", []string{"accepted", "rejected"})

	assert.Equal(t, CodeInvalidTransition, err.Code)
	assert.Contains(t, err.Error(), "under_review")
	assert.Contains(t, err.Error(), "confirmed")
	assert.Equal(t, []string{"accepted", "rejected"}, err.Details["allowed_next_statuses"])
}

func TestNewInvalidTransitionError_FinalStatus(t *testing.T) {
	err := NewInvalidTransitionError("rejected", "accepted", nil)

	assert.Contains(t, err.Message, "final")
	assert.Equal(t, []string{}, err.Details["allowed_next_statuses"])
}

func TestNewInvalidTransitionError_NoOp(t *testing.T) {
	err := NewInvalidTransitionError("confirmed", "confirmed", []string{"payment_completed"})

	assert.Contains(t, err.Message, "already in that status")
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("transition failed: %w", NewConcurrencyError("lock timeout"))

	assert.True(t, IsConcurrency(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
	assert.True(t, IsNotFound(NewNotFoundError("Booking", "42")))
	assert.True(t, IsValidation(NewValidationError("bad")))
	assert.True(t, IsInvalidTransition(NewInvalidTransitionError("a", "b", nil)))
}

func TestNewPaginatedResult(t *testing.T) {
	res := NewPaginatedResult([]int{1, 2}, 41, 1, 20)
	assert.Equal(t, 3, res.TotalPages)

	empty := NewPaginatedResult[int](nil, 0, 1, 20)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestIsStaleStatus(t *testing.T) {
	stale := NewStaleStatusError("booking", "b-1", "under_review", "requested")
	assert.True(t, IsConcurrency(stale))
	assert.True(t, IsStaleStatus(fmt.Errorf("wrapped: %w", stale)))
	assert.Equal(t, "requested", stale.Details["expected_status"])

	assert.False(t, IsStaleStatus(NewConcurrencyError("version changed")))
	assert.False(t, IsStaleStatus(NewValidationError("expected_status")))
}
