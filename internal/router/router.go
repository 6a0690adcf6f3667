package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/kashf99/park-booking/internal/handler"    // handlers that translate HTTP to service calls
	"github.com/kashf99/park-booking/internal/middleware" // JWT authentication and role enforcement
	"github.com/kashf99/park-booking/internal/model"      // role names
)

// Limits bundles the optional cross-cutting middleware.  A nil field is
// skipped.
type Limits struct {
	API     echo.MiddlewareFunc // token bucket for every /api route
	Booking echo.MiddlewareFunc // tighter bucket for booking creation
	Cache   echo.MiddlewareFunc // response cache for catalog reads
}

func use(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers routes that do not require authentication:
// the plain-text liveness check and the JSON health report.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers poll /healthz; humans and dashboards read /health.
	e.GET("/healthz", handler.Health)
	e.GET("/health", handler.HealthJSON)
}

// RegisterAuth registers the user endpoints.  Login is public; creating
// users requires an admin token so roles cannot be self-assigned.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, l Limits) {
	g := e.Group("/api/users", use(l.API)...)
	// POST /api/users/login exchanges email and password for an access token.
	g.POST("/login", a.Login)
	// POST /api/users creates a staff, admin or user account.
	g.POST("", a.Register, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
}

// RegisterAdmin registers operational endpoints for administrators.
func RegisterAdmin(e *echo.Echo, s *handler.StatsHandler, jwtSecret string) {
	g := e.Group("/api/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	// Expiry worker and notification dispatcher counters.
	g.GET("/stats", s.Stats)
}
