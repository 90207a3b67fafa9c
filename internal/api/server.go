package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	apimw "cms0/internal/api/middleware"
	"cms0/internal/api/validator"
	"cms0/internal/apperrors"
	"cms0/internal/config"
	"cms0/internal/handlers"
	"cms0/internal/metrics"
	"cms0/internal/models"
	"cms0/internal/services"
	console "cms0/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Options carries the infrastructure built by main. Storage and Tasks may be nil.
type Options struct {
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Storage handlers.StorageHandler
	Tasks   services.InvalidationQueue
	Limiter handlers.LoginLimiter
}

type Server struct {
	echo    *echo.Echo
	config  *config.Config
	db      *gorm.DB
	opts    Options
	deps    *dependencies
	metrics *metrics.Metrics
}

var log = console.New("API-Server")

// NewServer @title cms0 Admin API
// @version 1.0
// @description Multi-affiliate content administration API.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func NewServer(cfg *config.Config, db *gorm.DB, opts Options) (*Server, error) {
	e := echo.New()
	e.HideBanner = true

	// Create custom validator
	e.Validator = validator.NewValidator()

	// Configure middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength, apimw.AffiliateHeader},
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: cfg.Server.RequestTimeout,
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
	e.Use(middleware.BodyLimit("10M"))
	e.Use(opts.Metrics.Middleware())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))

	// Custom error handler
	e.HTTPErrorHandler = customHTTPErrorHandler

	s := &Server{
		echo:    e,
		config:  cfg,
		db:      db,
		opts:    opts,
		metrics: opts.Metrics,
	}
	s.deps = newDependencies(cfg, db, opts)
	subscribeAudit()

	if err := seed(db, cfg); err != nil {
		log.Warn("Warning: seeding incomplete: %v", err)
	}

	if err := s.mountAdminPanel(); err != nil {
		return nil, log.Error("Failed to create admin panel", err)
	}

	s.registerRoutes()
	return s, nil
}

// seed makes sure the default permissions, system roles and the env super admin exist.
func seed(db *gorm.DB, cfg *config.Config) error {
	if err := models.SeedPermissions(db); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	log.Success("Successfully seeded permissions")

	if err := models.SeedRoles(db); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	log.Success("Successfully seeded roles")

	if err := models.CreateSuperAdminFromEnv(db, cfg); err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}
	return nil
}

// mountAdminPanel serves the generic admin panel under /admin to authenticated users
// holding admin_panel.read.
func (s *Server) mountAdminPanel() error {
	gormIntegrator := admingorm.NewIntegrator(s.db)
	echoIntegrator := adminecho.NewIntegrator(s.echo.Group("/admin", s.deps.auth.Middleware()))

	adminPanel, err := admin.NewPanel(gormIntegrator, echoIntegrator, adminPermissionChecker, nil)
	if err != nil {
		return err
	}

	_, err = adminPanel.RegisterApp("cms0", "cms0 Admin Panel", nil)
	return err
}

func adminPermissionChecker(_ admin.PermissionRequest, ctx interface{}) (bool, error) {
	c, ok := ctx.(echo.Context)
	if !ok {
		return false, nil
	}
	return apimw.GetPermissions(c).Has(models.PermissionName("admin_panel", models.ActionRead)), nil
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	status := http.StatusOK
	checks := map[string]string{"database": "ok"}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if s.opts.Redis != nil {
		checks["redis"] = "ok"
		if err := s.opts.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
		}
	}

	return c.JSON(status, map[string]interface{}{
		"status":  http.StatusText(status),
		"version": "1.0.0",
		"checks":  checks,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// errorResponse maps err onto a status code and the JSON body of the error envelope.
func errorResponse(err error) (int, map[string]interface{}) {
	body := map[string]interface{}{"success": false}
	code := http.StatusInternalServerError

	var (
		he       *echo.HTTPError
		vErrs    validator.ValidationErrors
		fieldErr *apperrors.ValidationError
		conflict *apperrors.ConflictError
	)
	switch {
	case errors.As(err, &he):
		code = he.Code
		body["error"] = he.Message
	case errors.As(err, &vErrs):
		code = http.StatusBadRequest
		body["error"] = apperrors.ErrValidation.Error()
		body["fields"] = vErrs.Fields()
	case errors.As(err, &fieldErr):
		code = http.StatusBadRequest
		body["error"] = apperrors.ErrValidation.Error()
		body["fields"] = fieldErr.Fields
	case errors.As(err, &conflict):
		code = http.StatusConflict
		body["error"] = conflict.Error()
		body["dependents"] = conflict.Dependents
		body["dependentKind"] = conflict.DependentKind
	case errors.Is(err, apperrors.ErrNotFound):
		code = http.StatusNotFound
		body["error"] = err.Error()
	case errors.Is(err, apperrors.ErrForbidden):
		code = http.StatusForbidden
		body["error"] = err.Error()
	case errors.Is(err, apperrors.ErrAmbiguousAffiliate), errors.Is(err, apperrors.ErrValidation):
		code = http.StatusBadRequest
		body["error"] = err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		code = http.StatusUnauthorized
		body["error"] = err.Error()
	default:
		body["error"] = http.StatusText(code)
	}

	body["code"] = code
	body["time"] = time.Now().Format(time.RFC3339)
	return code, body
}

// Custom HTTP error handler
func customHTTPErrorHandler(err error, c echo.Context) {
	code, body := errorResponse(err)
	if code >= http.StatusInternalServerError {
		log.Error("Request %s %s failed", err, c.Request().Method, c.Path())
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}
