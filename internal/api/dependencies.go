package api

import (
	"cms0/internal/affiliate"
	apimw "cms0/internal/api/middleware"
	"cms0/internal/authz"
	"cms0/internal/config"
	"cms0/internal/handlers"
	"cms0/internal/models"
	"cms0/internal/services"
	"cms0/internal/utils"

	"gorm.io/gorm"
)

// dependencies is the object graph behind the HTTP routes.
type dependencies struct {
	auth     *apimw.AuthMiddleware
	resolver *affiliate.Resolver
	checker  *authz.Checker

	authHandler      *handlers.AuthHandler
	teamHandler      *handlers.TeamHandler
	menuHandler      *handlers.MenuHandler
	rbacHandler      *handlers.RBACHandler
	affiliateHandler *handlers.AffiliateHandler
	uploadHandler    *handlers.UploadHandler
}

func newDependencies(cfg *config.Config, db *gorm.DB, opts Options) *dependencies {
	users := services.NewGormUserRepository(db)
	rbacRepo := services.NewGormRBACRepository(db)
	affiliateRepo := services.NewGormAffiliateRepository(db)

	checker := authz.NewChecker(rbacRepo, opts.Redis, cfg.Cache.PermissionTTL, opts.Metrics)
	tokens := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.RefreshTTL)
	team := services.NewTeamService(users)

	d := &dependencies{
		auth:     apimw.NewAuthMiddleware(tokens, users, checker),
		resolver: affiliate.NewResolver(affiliateRepo, opts.Metrics),
		checker:  checker,

		authHandler: handlers.NewAuthHandler(handlers.AuthOptions{
			Users:      users,
			Sessions:   users,
			Affiliates: affiliateRepo,
			Roles:      rbacRepo,
			Team:       team,
			Tokens:     tokens,
			Limiter:    opts.Limiter,
			Metrics:    opts.Metrics,
		}),
		teamHandler:      handlers.NewTeamHandler(team, checker, opts.Metrics),
		menuHandler:      handlers.NewMenuHandler(services.NewMenuService(services.NewBaseService(db, models.Menu{}), opts.Metrics)),
		rbacHandler:      handlers.NewRBACHandler(services.NewRBACService(rbacRepo, checker, opts.Tasks)),
		affiliateHandler: handlers.NewAffiliateHandler(services.NewAffiliateService(affiliateRepo)),
	}
	if opts.Storage != nil {
		d.uploadHandler = handlers.NewUploadHandler(opts.Storage, services.NewBaseService(db, models.File{}))
	}
	return d
}
