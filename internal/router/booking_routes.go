package router

import (
	"github.com/labstack/echo/v4"

	"github.com/kashf99/park-booking/internal/handler"
	"github.com/kashf99/park-booking/internal/middleware"
	"github.com/kashf99/park-booking/internal/model"
)

// RegisterBookings registers the booking endpoints.  Visitors book, look
// up and cancel without an account; only gate staff and admins may
// validate tickets.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, l Limits) {
	g := e.Group("/api/bookings", use(l.API)...)

	g.POST("", h.Create, use(l.Booking)...)
	g.POST("/visitor", h.Visitor)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/validate-qr", h.ValidateQR,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleStaff))
}
