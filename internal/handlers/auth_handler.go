package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cms0/internal/affiliate"
	"cms0/internal/api/middleware"
	"cms0/internal/api/validator"
	"cms0/internal/apperrors"
	"cms0/internal/metrics"
	"cms0/internal/models"
	"cms0/internal/services"
	"cms0/internal/utils"
	"cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

// LoginLimiter throttles login attempts per client.
type LoginLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// RoleFinder resolves seeded roles by name.
type RoleFinder interface {
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
}

// AuthOptions wires the AuthHandler.
type AuthOptions struct {
	Users      services.UserRepository
	Sessions   services.SessionRepository
	Affiliates affiliate.Store
	Roles      RoleFinder
	Team       *services.TeamService
	Tokens     *utils.TokenIssuer
	Limiter    LoginLimiter
	Metrics    *metrics.Metrics
}

type AuthHandler struct {
	users      services.UserRepository
	sessions   services.SessionRepository
	affiliates affiliate.Store
	roles      RoleFinder
	team       *services.TeamService
	tokens     *utils.TokenIssuer
	limiter    LoginLimiter
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

func NewAuthHandler(opts AuthOptions) *AuthHandler {
	return &AuthHandler{
		users:      opts.Users,
		sessions:   opts.Sessions,
		affiliates: opts.Affiliates,
		roles:      opts.Roles,
		team:       opts.Team,
		tokens:     opts.Tokens,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		log:        logger.New("AuthHandler"),
		now:        time.Now,
	}
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	AffiliateID  string       `json:"affiliateId,omitempty"`
	User         *models.User `json:"user,omitempty"`
}

// Register creates a root user. The very first account receives the super_admin role;
// later self-registered accounts start without a role and hold no permissions.
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.RegisterRequest true "Registration details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation error or email exists"
// @Router /api/admin/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req validator.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	in := services.UserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	count, err := h.users.CountUsers(ctx)
	if err != nil {
		return h.log.Error("Failed to count users", err)
	}
	if count == 0 && h.roles != nil {
		role, err := h.roles.GetRoleByName(ctx, models.RoleSuperAdmin)
		if err != nil {
			h.log.Warn("First user registered without a role: %v", err)
		} else {
			in.RoleID = role.ID
		}
	}

	user, err := h.team.CreateUser(ctx, "", in)
	if err != nil {
		return err
	}

	h.log.Success("User %s registered", user.Email)
	return respond(c, http.StatusCreated, user)
}

// Login authenticates a user and opens a session, optionally bound to one affiliate.
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.LoginRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} map[string]interface{} "Invalid credentials"
// @Failure 403 {object} map[string]interface{} "Not a member of the affiliate"
// @Failure 429 {object} map[string]interface{} "Too many attempts"
// @Router /api/admin/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req validator.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	ip := utils.GetIPAddress(c.Request())

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, ip)
		if err != nil {
			h.log.Warn("Login limiter unavailable: %v", err)
		} else if !allowed {
			h.metrics.LoginRateLimited()
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts")
		}
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		return err
	}
	if !utils.CheckPassword(user.Password, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	if user.Status != models.UserStatusActive {
		return apperrors.Forbidden("account is " + string(user.Status))
	}

	if req.AffiliateID != "" {
		ok, err := h.affiliates.IsMember(ctx, user.ID, req.AffiliateID)
		if err != nil {
			return h.log.Error("Failed to check affiliate membership", err)
		}
		if !ok {
			return apperrors.Forbidden("not a member of the requested affiliate")
		}
	}

	token, expiresAt, err := h.tokens.GenerateJWT(*user, req.AffiliateID)
	if err != nil {
		return h.log.Error("Failed to generate token", err)
	}
	refresh, refreshExpiresAt, err := h.tokens.GenerateRefreshToken(*user, req.AffiliateID)
	if err != nil {
		return h.log.Error("Failed to generate refresh token", err)
	}

	session := &models.AuthTransaction{
		UserID:    user.ID,
		Token:     token,
		Refresh:   refresh,
		IPAddress: ip,
		UserAgent: c.Request().UserAgent(),
		ExpiresAt: refreshExpiresAt,
	}
	if req.AffiliateID != "" {
		affiliateID := req.AffiliateID
		session.AffiliateID = &affiliateID
	}
	if err := h.sessions.CreateSession(ctx, session); err != nil {
		return h.log.Error("Failed to create auth transaction", err)
	}

	if h.limiter != nil {
		if err := h.limiter.Reset(ctx, ip); err != nil {
			h.log.Warn("Failed to reset login limiter for %s: %v", ip, err)
		}
	}

	return respond(c, http.StatusOK, TokenResponse{
		Token:        token,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		AffiliateID:  req.AffiliateID,
		User:         user,
	})
}

// RefreshToken issues a new access token for the session behind a refresh token. The
// session keeps its affiliate binding.
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.RefreshRequest true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} map[string]interface{} "Invalid refresh token"
// @Router /api/admin/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req validator.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	claims, err := h.tokens.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}
	session, err := h.sessions.FindSessionByRefresh(ctx, req.RefreshToken)
	if err != nil || session.UserID != claims.UserID || session.ExpiresAt.Before(h.now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}

	user, err := h.users.GetUser(ctx, claims.UserID)
	if err != nil || user.Status != models.UserStatusActive {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	affiliateID := ""
	if session.AffiliateID != nil {
		affiliateID = *session.AffiliateID
	}
	token, expiresAt, err := h.tokens.GenerateJWT(*user, affiliateID)
	if err != nil {
		return h.log.Error("Failed to generate access token", err)
	}
	if err := h.sessions.UpdateSessionToken(ctx, session.ID, token); err != nil {
		return h.log.Error("Failed to save access token", err)
	}

	return respond(c, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt, AffiliateID: affiliateID})
}

// GetMe returns the caller with their effective permissions and session affiliate.
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/auth/me [get]
func (h *AuthHandler) GetMe(c echo.Context) error {
	user, err := h.users.GetUser(c.Request().Context(), middleware.GetUserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]interface{}{
		"user":        user,
		"permissions": middleware.GetPermissions(c).Names(),
		"affiliateId": middleware.GetSessionAffiliateID(c),
	})
}

// Logout revokes the current session.
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /api/admin/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessions.RevokeSession(c.Request().Context(), middleware.GetSessionID(c)); err != nil {
		return h.log.Error("Failed to revoke session", err)
	}
	return c.NoContent(http.StatusNoContent)
}
