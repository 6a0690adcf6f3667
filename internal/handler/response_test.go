package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kashf99/park-booking/internal/service"
)

func TestStatusFor(t *testing.T) {
	cases := map[service.Code]int{
		service.CodeNotFound:          http.StatusNotFound,
		service.CodeInvalidBooking:    http.StatusNotFound,
		service.CodeValidationFailed:  http.StatusBadRequest,
		service.CodeCapacityExceeded:  http.StatusConflict,
		service.CodeConflictDuplicate: http.StatusConflict,
		service.CodeAlreadyValidated:  http.StatusConflict,
		service.CodeTampered:          http.StatusUnprocessableEntity,
		service.CodeTooEarly:          http.StatusUnprocessableEntity,
		service.CodeExpired:           http.StatusUnprocessableEntity,
		service.CodeCancelled:         http.StatusUnprocessableEntity,
		service.CodeInvalidTransition: http.StatusUnprocessableEntity,
		service.CodeDependencyFailure: http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), code)
	}
}

func TestFailHidesDependencyCause(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, fail(c, nil, errors.New("dial tcp 10.0.0.5:3306: connection refused")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), `"code":"DEPENDENCY_FAILURE"`)
}
