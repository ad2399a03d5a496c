package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"poscore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestParseTime(t *testing.T) {
	start, err := parseTime("2026-03-10", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), start)

	end, err := parseTime("2026-03-10", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 23, 59, 59, 999999999, time.UTC), end)

	exact, err := parseTime("2026-03-10T12:30:00-03:00", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC), exact)

	_, err = parseTime("10/03/2026", false)
	assert.Error(t, err)
}

func TestRespondError_MapsKinds(t *testing.T) {
	cases := []struct {
		kind   error
		status int
		code   string
	}{
		{service.ErrValidation, http.StatusUnprocessableEntity, "validation"},
		{service.ErrNotFound, http.StatusNotFound, "not_found"},
		{service.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
		{service.ErrInsufficientPayment, http.StatusConflict, "insufficient_payment"},
		{service.ErrSessionAlreadyOpen, http.StatusConflict, "session_already_open"},
		{service.ErrSessionNotOpen, http.StatusConflict, "session_not_open"},
		{service.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
		{service.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{service.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, &service.DomainError{Kind: tc.kind, Message: "mensaje"})

			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, `{"code":"`+tc.code+`","detail":"mensaje"}`, w.Body.String())
		})
	}
}

func TestRespondError_UnknownErrorIsDeferred(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("boom"))

	assert.Len(t, c.Errors, 1)
	assert.Empty(t, w.Body.String())
}
