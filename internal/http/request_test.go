package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/drive"
	"dompet/internal/editor"
	"dompet/internal/targets"
)

func TestAmountInput(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`"5.000.000"`, "5.000.000", false},
		{`2500000`, "2500000", false},
		{`-1`, "", true},
		{`true`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a amountInput
			err := json.Unmarshal([]byte(tt.in), &a)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(a))
		})
	}
}

func TestMonthParam(t *testing.T) {
	now := time.Date(2024, 8, 31, 23, 0, 0, 0, time.UTC)

	m, err := monthParam(httptest.NewRequest(http.MethodGet, "/api/targets", nil), now)
	require.NoError(t, err)
	assert.Equal(t, core.MonthKey("2024-08"), m)

	m, err = monthParam(httptest.NewRequest(http.MethodGet, "/api/targets?month=2025-03", nil), now)
	require.NoError(t, err)
	assert.Equal(t, core.MonthKey("2025-03"), m)

	_, err = monthParam(httptest.NewRequest(http.MethodGet, "/api/targets?month=2025-13", nil), now)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", editor.ErrNotConfirmed), http.StatusConflict},
		{targets.ErrCategoryNotFound, http.StatusNotFound},
		{core.ErrEmptyCategory, http.StatusUnprocessableEntity},
		{errMissingAmount, http.StatusUnprocessableEntity},
		{drive.ErrTokenProviderUnavailable, http.StatusServiceUnavailable},
		{amqp.ErrCircuitOpen, http.StatusServiceUnavailable},
		{&drive.UploadError{StatusCode: 403, Message: "forbidden"}, http.StatusBadGateway},
		{&targets.GatewayError{Op: "upsert", Err: errors.New("down")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("db password leaked"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
}
