package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("get: %w", domain.ErrProjectNotFound), http.StatusNotFound},
		{"unauthorized", fmt.Errorf("complete: %w", domain.ErrUnauthorized), http.StatusForbidden},
		{"invalid argument", fmt.Errorf("create: %w: value must be positive", domain.ErrInvalidArgument), http.StatusBadRequest},
		{"invalid state", fmt.Errorf("approve: %w", domain.ErrInvalidState), http.StatusConflict},
		{"deadline", fmt.Errorf("complete: %w", domain.ErrDeadlinePassed), http.StatusUnprocessableEntity},
		{"transfer", fmt.Errorf("approve: %w: %w", domain.ErrTransferFailed, errors.New("offline")), http.StatusBadGateway},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"user exists", domain.ErrUserExists, http.StatusConflict},
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "invalid payload"), http.StatusBadRequest},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	handler := NewHTTPErrorHandler(zerolog.Nop())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			handler(tc.err, c)

			assert.Equal(t, tc.want, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHTTPErrorHandler_HidesInternalDetails(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(errors.New("pq: password authentication failed"), c)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
}
