package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrip/service-lifecycle/pkg/domain"
)

func render(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)
	return w
}

func TestError_MapsDomainCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", domain.NewValidationError("bad"), http.StatusBadRequest},
		{"not found", domain.NewNotFoundError("Booking", "x"), http.StatusNotFound},
		{"forbidden", domain.NewForbiddenError("no"), http.StatusForbidden},
		{"invalid transition", domain.NewInvalidTransitionError("completed", "requested", nil), http.StatusUnprocessableEntity},
		{"concurrency wrapped", fmt.Errorf("apply: %w", domain.NewConcurrencyError("busy")), http.StatusConflict},
		{"plain", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, render(tt.err).Code)
		})
	}
}

func TestError_ConcurrencySetsRetryAfter(t *testing.T) {
	w := render(domain.NewConcurrencyError("busy"))
	assert.Equal(t, RetryAfterSeconds, w.Header().Get("Retry-After"))
}

func TestError_InvalidTransitionCarriesAllowed(t *testing.T) {
	w := render(domain.NewInvalidTransitionError("requested", "confirmed", []string{"under_review", "rejected"}))

	var env struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.ElementsMatch(t, []interface{}{"under_review", "rejected"}, env.Error.Details["allowed_next_statuses"])
}

func TestPaginated_ComputesTotalPages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Paginated(c, []int{1, 2}, 41, 1, 20)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.TotalPages)
}
