package middleware

// identity.go reads the identity JWTAuth stored in the Echo context.  Rate
// limiting keys on it and the validation handler records it as the staff
// member that redeemed a ticket.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c echo.Context) string {
    s, _ := c.Get(CtxUserID).(string)
    return s
}

// Role returns the authenticated role, or "".
func Role(c echo.Context) string {
    s, _ := c.Get(CtxRole).(string)
    return s
}

// rateIdentity is UserID with a placeholder for anonymous requests.
func rateIdentity(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
