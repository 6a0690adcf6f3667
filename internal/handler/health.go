package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/kashf99/park-booking/internal/service"
)

// Health is a liveness check for load balancers.  It returns a plain
// text "ok" with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// HealthJSON reports service identity and the current time.
func HealthJSON(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{
        "status":    "OK",
        "service":   "Park Booking API",
        "timestamp": time.Now().UTC(),
    })
}

// StatsHandler exposes background worker counters to administrators.
type StatsHandler struct {
    Worker     *service.ExpiryWorker
    Dispatcher *service.Dispatcher
}

// Stats handles GET /api/admin/stats.
func (h *StatsHandler) Stats(c echo.Context) error {
    out := echo.Map{"success": true}
    if h.Worker != nil {
        out["expiryWorker"] = h.Worker.GetStats()
    }
    if h.Dispatcher != nil {
        st := h.Dispatcher.Stats()
        out["notifications"] = echo.Map{
            "submitted": st.Submitted,
            "published": st.Published,
            "dropped":   st.Dropped,
            "failed":    st.Failed,
        }
    }
    return c.JSON(http.StatusOK, out)
}
