package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cms0/internal/authz"
	"cms0/internal/models"
	"cms0/internal/utils"
	"cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

var log = logger.New("AUTH_MIDDLEWARE")

// Context keys set by the auth middleware.
const (
	ContextUserID             = "userID"
	ContextEmail              = "email"
	ContextRoleID             = "roleID"
	ContextSessionID          = "sessionID"
	ContextSessionAffiliateID = "sessionAffiliateID"
	ContextPermissions        = "permissions"
)

// SessionStore finds the AuthTransaction recorded for an issued token.
type SessionStore interface {
	FindSession(ctx context.Context, token string) (*models.AuthTransaction, error)
}

// PermissionSource resolves the live permission set of a user.
type PermissionSource interface {
	PermissionsForUser(ctx context.Context, userID string) (authz.Set, error)
}

type AuthMiddleware struct {
	tokens   *utils.TokenIssuer
	sessions SessionStore
	perms    PermissionSource
	now      func() time.Time
}

func NewAuthMiddleware(tokens *utils.TokenIssuer, sessions SessionStore, perms PermissionSource) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions, perms: perms, now: time.Now}
}

// Middleware authenticates the bearer token against its recorded session and loads the
// caller's permissions from their current role.
func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenParts := strings.SplitN(authHeader, " ", 2)
			if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.validateJWT(c, strings.TrimSpace(tokenParts[1]), next)
		}
	}
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	ctx := c.Request().Context()

	claims, err := m.tokens.ParseJWT(tokenString)
	if err != nil {
		log.Debug("Rejected token: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	session, err := m.sessions.FindSession(ctx, tokenString)
	if err != nil || session.UserID != claims.UserID {
		return echo.NewHTTPError(http.StatusUnauthorized, "Session not found")
	}
	if session.IsDeleted || session.ExpiresAt.Before(m.now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Session has expired")
	}

	perms, err := m.perms.PermissionsForUser(ctx, claims.UserID)
	if err != nil {
		log.Warn("Failed to load permissions of %s: %v", claims.UserID, err)
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextEmail, claims.Email)
	c.Set(ContextRoleID, claims.RoleID)
	c.Set(ContextSessionID, session.ID)
	if session.AffiliateID != nil {
		c.Set(ContextSessionAffiliateID, *session.AffiliateID)
	}
	c.Set(ContextPermissions, perms)

	return next(c)
}

// GetUserID Helper functions to get values from context
func GetUserID(c echo.Context) string {
	if id, ok := c.Get(ContextUserID).(string); ok {
		return id
	}
	return ""
}

func GetSessionID(c echo.Context) string {
	if id, ok := c.Get(ContextSessionID).(string); ok {
		return id
	}
	return ""
}

func GetSessionAffiliateID(c echo.Context) string {
	if id, ok := c.Get(ContextSessionAffiliateID).(string); ok {
		return id
	}
	return ""
}

// GetPermissions returns the caller's permission set. Unauthenticated requests get an
// empty set.
func GetPermissions(c echo.Context) authz.Set {
	if set, ok := c.Get(ContextPermissions).(authz.Set); ok {
		return set
	}
	return authz.Set{}
}
