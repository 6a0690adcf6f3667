package handler

import (
    "context"  // provides context with cancellation for store calls
    "errors"   // errors.Is comparisons against repository sentinels
    "net/http" // HTTP status codes and primitives
    "strings"  // string manipulation utilities
    "time"     // timeouts for store calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"

    "github.com/kashf99/park-booking/internal/config"     // app configuration
    "github.com/kashf99/park-booking/internal/model"      // roles
    "github.com/kashf99/park-booking/internal/repository" // repository sentinels
    "github.com/kashf99/park-booking/internal/service"    // UserStore
    "github.com/kashf99/park-booking/internal/utils"      // hashing and token issuing
)

// AuthHandler bundles dependencies for user endpoints.  Users are staff
// and administrators; visitors book without an account.
type AuthHandler struct {
    Cfg   config.Config
    Users service.UserStore
    Log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, u service.UserStore, log *zap.Logger) *AuthHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &AuthHandler{Cfg: cfg, Users: u, Log: log}
}

// ----- DTOs -----

type registerReq struct {
    Name     string `json:"name"`
    Email    string `json:"email"`
    Password string `json:"password"`
    Role     string `json:"role"` // admin | staff | user
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type userPart struct {
    ID    string `json:"id"`
    Name  string `json:"name"`
    Email string `json:"email"`
    Role  string `json:"role"`
}

// Register handles POST /api/users (admin).  It creates a user with a
// bcrypt hashed password.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    req.Name = strings.TrimSpace(req.Name)
    if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
        return badRequest(c, "name and a valid email are required")
    }
    role := strings.ToLower(strings.TrimSpace(req.Role))
    if role == "" {
        role = model.RoleUser
    }
    if !model.ValidRole(role) {
        return badRequest(c, "Invalid role")
    }
    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if errors.Is(err, utils.ErrPasswordTooShort) {
        return badRequest(c, err.Error())
    }
    if err != nil {
        h.Log.Error("hash password failed", zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to create user"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    uid, err := h.Users.Create(ctx, req.Name, req.Email, hash, role)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"success": false, "code": service.CodeConflictDuplicate, "message": "Email already in use"})
        }
        h.Log.Error("create user failed", zap.Error(err))
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"success": false, "code": service.CodeDependencyFailure, "message": "Failed to create user"})
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "success": true,
        "message": "User created",
        "data":    userPart{ID: uid, Name: req.Name, Email: req.Email, Role: role},
    })
}

// Login handles POST /api/users/login.  It verifies the password and
// returns a signed access token.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return badRequest(c, "email/password required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid credentials"})
        }
        h.Log.Error("load user failed", zap.Error(err))
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"success": false, "code": service.CodeDependencyFailure, "message": "Failed to login"})
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid credentials"})
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role, h.Cfg.JWTTTLHours)
    if err != nil {
        h.Log.Error("issue token failed", zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to login"})
    }

    return c.JSON(http.StatusOK, echo.Map{
        "success":   true,
        "token":     access.Token,
        "expiresAt": access.Exp,
        "user":      userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
    })
}

// SeedAdmin creates the configured admin account when it does not exist
// yet.  It lets a fresh deployment obtain its first admin token.
func SeedAdmin(ctx context.Context, cfg config.Config, users service.UserStore, log *zap.Logger) error {
    if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
        return nil
    }
    if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
        return nil
    } else if !errors.Is(err, repository.ErrNotFound) {
        return err
    }
    hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
    if err != nil {
        return err
    }
    _, err = users.Create(ctx, "Administrator", cfg.AdminEmail, hash, model.RoleAdmin)
    if errors.Is(err, repository.ErrEmailExists) {
        return nil
    }
    if err == nil && log != nil {
        log.Info("admin account seeded", zap.String("email", strings.ToLower(cfg.AdminEmail)))
    }
    return err
}
