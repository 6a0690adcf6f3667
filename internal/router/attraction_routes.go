package router

import (
	"github.com/labstack/echo/v4"

	"github.com/kashf99/park-booking/internal/handler"
	"github.com/kashf99/park-booking/internal/middleware"
	"github.com/kashf99/park-booking/internal/model"
)

// RegisterAttractions registers the catalog.  Reads are public and the
// list and detail pages go through the response cache; availability is
// never cached because it changes with every booking.  Writes require
// the admin role.
func RegisterAttractions(e *echo.Echo, h *handler.AttractionHandler, jwtSecret string, l Limits) {
	g := e.Group("/api/attractions", use(l.API)...)

	g.GET("", h.List, use(l.Cache)...)
	g.GET("/:id", h.Get, use(l.Cache)...)
	g.GET("/:id/availability", h.Availability)

	admin := g.Group("", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.PATCH("/:id", h.Update)
	// DELETE is a soft delete; activate restores the attraction.
	admin.DELETE("/:id", h.Delete)
	admin.POST("/:id/activate", h.Activate)
}
