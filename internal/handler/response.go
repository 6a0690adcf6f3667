package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/service"
)

// statusFor maps a rejection code to its HTTP status.
func statusFor(code service.Code) int {
	switch code {
	case service.CodeNotFound, service.CodeInvalidBooking:
		return http.StatusNotFound
	case service.CodeValidationFailed:
		return http.StatusBadRequest
	case service.CodeCapacityExceeded, service.CodeConflictDuplicate, service.CodeAlreadyValidated:
		return http.StatusConflict
	case service.CodeTampered, service.CodeTooEarly, service.CodeExpired,
		service.CodeCancelled, service.CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

// fail writes err as {"success": false, "code", "message", "available"?}.
// Dependency failures are logged with their cause; the cause itself is
// never sent to the client.
func fail(c echo.Context, log *zap.Logger, err error) error {
	r := service.AsRejection(err)
	if r.Code == service.CodeDependencyFailure && log != nil {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	body := echo.Map{"success": false, "code": r.Code, "message": r.Message}
	if r.Available != nil {
		body["available"] = *r.Available
	}
	return c.JSON(statusFor(r.Code), body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"success": false,
		"code":    service.CodeValidationFailed,
		"message": msg,
	})
}
