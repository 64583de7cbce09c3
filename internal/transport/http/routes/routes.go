package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/infra/config"
	"github.com/caldora/practice-authz/internal/infra/security"
	"github.com/caldora/practice-authz/internal/transport/http/handlers"
	"github.com/caldora/practice-authz/internal/transport/http/middleware"
	"github.com/caldora/practice-authz/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Contexts      *usecase.ContextService
	Authorization *usecase.AuthorizationService
	Roles         *usecase.RoleService
	Organizations *usecase.OrganizationService
	Catalog       *usecase.CatalogService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Verifier    *security.TokenVerifier
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))

	if httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(httpMetrics.Handler())
	} else if deps.Logger != nil {
		deps.Logger.Warn("failed to register http metrics", zap.Error(err))
	}

	authMiddleware := middleware.RequireAuth(deps.Verifier)
	contextMiddleware := middleware.ResolveUserContext(deps.Services.Contexts)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authzGroup := api.Group("/authz")
		authzGroup.Use(authMiddleware, contextMiddleware)
		if limiter := buildCheckLimiter(deps); limiter != nil {
			authzGroup.Use(limiter)
		}

		authzHandler := handlers.NewAuthzHandler(deps.Services.Authorization)
		authzGroup.POST("/check", authzHandler.Check)
		authzGroup.GET("/scope", authzHandler.Scope)
		authzGroup.GET("/context", authzHandler.Context)

		rolesGroup := api.Group("/roles")
		rolesGroup.Use(authMiddleware, contextMiddleware)
		roleHandler := handlers.NewRoleHandler(deps.Services.Roles, deps.Services.Authorization)
		rolesGroup.GET("", middleware.RequirePermission(deps.Services.Authorization, "roles:read:all", "roles:read:organization"), roleHandler.List)
		rolesGroup.POST("", middleware.RequirePermission(deps.Services.Authorization, "roles:manage:all", "roles:manage:organization"), roleHandler.Create)

		roleAdmin := middleware.RequirePermission(deps.Services.Authorization, "roles:manage:all", "roles:manage:organization")
		rolesGroup.POST("/:id/permissions", roleAdmin, roleHandler.AssignPermissions)
		rolesGroup.DELETE("/:id/permissions", roleAdmin, roleHandler.RevokePermissions)
		rolesGroup.DELETE("/:id", roleAdmin, roleHandler.Delete)
		rolesGroup.POST("/:id/deactivate", roleAdmin, roleHandler.Deactivate)
		rolesGroup.POST("/:id/grants", roleAdmin, roleHandler.Grant)
		rolesGroup.DELETE("/:id/grants", roleAdmin, roleHandler.Revoke)

		orgGroup := api.Group("/organizations")
		orgGroup.Use(authMiddleware, contextMiddleware)
		orgHandler := handlers.NewOrganizationHandler(deps.Services.Organizations)
		orgAdmin := middleware.RequirePermission(deps.Services.Authorization, "organizations:manage:all")
		orgGroup.POST("", orgAdmin, orgHandler.Create)
		orgRead := middleware.RequirePermissionForOrganizationParam(deps.Services.Authorization, "id", "organizations:read:all", "organizations:read:organization")
		orgGroup.GET("/:id", orgRead, orgHandler.Get)
		orgGroup.GET("/:id/descendants", orgRead, orgHandler.Descendants)
		orgGroup.POST("/:id/deactivate", orgAdmin, orgHandler.Deactivate)

		catalogGroup := api.Group("/catalog")
		catalogGroup.Use(authMiddleware, contextMiddleware)
		catalogHandler := handlers.NewCatalogHandler(deps.Services.Catalog)
		catalogGroup.GET("", middleware.RequirePermission(deps.Services.Authorization, "permissions:read:all"), catalogHandler.List)
		catalogGroup.POST("/seed", middleware.RequirePermission(deps.Services.Authorization, "permissions:manage:all"), catalogHandler.Seed)
	}

	return r
}

func buildCheckLimiter(deps Dependencies) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.CheckMaxRequests
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.Window
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.Limit("authz_check", limit, window)
}
