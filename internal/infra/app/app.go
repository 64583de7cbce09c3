package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/infra/config"
	"github.com/caldora/practice-authz/internal/infra/database"
	kafkainfra "github.com/caldora/practice-authz/internal/infra/kafka"
	"github.com/caldora/practice-authz/internal/infra/logger"
	redisinfra "github.com/caldora/practice-authz/internal/infra/redis"
	"github.com/caldora/practice-authz/internal/infra/security"
	"github.com/caldora/practice-authz/internal/infra/telemetry"
	"github.com/caldora/practice-authz/internal/repository/memory"
	postgresrepo "github.com/caldora/practice-authz/internal/repository/postgres"
	redisrepo "github.com/caldora/practice-authz/internal/repository/redis"
	"github.com/caldora/practice-authz/internal/transport/http/middleware"
	"github.com/caldora/practice-authz/internal/transport/http/routes"
	"github.com/caldora/practice-authz/internal/usecase"
)

// Application wires the authorization service together and manages its lifecycle.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	consumer  *kafkainfra.ConsumerGroup
	tracer    *telemetry.TracerProvider
	roleCache port.RolePermissionCache
}

// New builds a fully wired Application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	verifier, err := security.NewTokenVerifier(cfg.JWT)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var redisClient *redisinfra.Client
	var roleCache port.RolePermissionCache
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		roleCache = redisrepo.NewRolePermissionCache(redisClient.Client(), cfg.Redis.RolePermissionPrefix)
		log.Info("role permission cache backed by redis")
	} else {
		roleCache = memory.NewRolePermissionCache(cfg.Cache.MaxEntries, cfg.Cache.RolePermissionTTL)
		log.Info("role permission cache backed by in-process LRU")
	}

	ctxCache := memory.NewUserContextCache(cfg.Cache.MaxEntries, cfg.Cache.UserContextTTL)

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	var auditSink port.AuditSink
	var consumer *kafkainfra.ConsumerGroup

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		}
	}

	if producer != nil {
		eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		auditSink = kafkainfra.NewAuditPublisher(producer, cfg.App, log)
		log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		invalidation := kafkainfra.NewInvalidationConsumer(roleCache, ctxCache, log)
		consumer, err = kafkainfra.NewConsumerGroup(cfg.Kafka, kafkainfra.InvalidationTopics(cfg.Kafka), invalidation, log)
		if err != nil {
			log.Warn("failed to join invalidation consumer group", zap.Error(err))
			consumer = nil
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
		auditSink = kafkainfra.NewStubAuditSink(log)
	}

	contexts := usecase.NewContextService(repos.Users, repos.Organizations, repos.Roles, repos.Permissions, roleCache, log).
		WithRolePermissionTTL(cfg.Cache.RolePermissionTTL).
		WithUserContextCache(ctxCache, cfg.Cache.UserContextTTL).
		WithMetrics(metrics)

	authorization := usecase.NewAuthorizationService(auditSink, log).
		WithMetrics(metrics)

	roleService := usecase.NewRoleService(repos.Roles, repos.Permissions, repos.Users, roleCache, contexts, eventPublisher, log)
	organizationService := usecase.NewOrganizationService(repos.Organizations, log)
	catalogService := usecase.NewCatalogService(repos.Permissions, roleCache, eventPublisher, log)

	var rateLimiter *middleware.RateLimiter
	if redisClient != nil && cfg.RateLimit.CheckMaxRequests > 0 {
		store := redisrepo.NewRateLimitStore(redisClient.Client(), "")
		rateLimiter = middleware.NewRateLimiter(store, log)
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Verifier:    verifier,
		RateLimiter: rateLimiter,
		Database:    pool,
		Services: routes.ServiceSet{
			Contexts:      contexts,
			Authorization: authorization,
			Roles:         roleService,
			Organizations: organizationService,
			Catalog:       catalogService,
		},
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}

	engine := routes.Register(deps)

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		producer:  producer,
		consumer:  consumer,
		tracer:    tracer,
		roleCache: roleCache,
	}, nil
}

// reportCacheHealth logs role cache counters until the context is cancelled.
// A sustained low hit rate under load usually means the TTL is shorter than
// the role-change cadence warrants.
func (a *Application) reportCacheHealth(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := a.roleCache.Stats()
			fields := []zap.Field{
				zap.Uint64("hits", stats.Hits),
				zap.Uint64("misses", stats.Misses),
				zap.Float64("hit_rate", stats.HitRate()),
				zap.Int("size", stats.Size),
			}
			if stats.Hits+stats.Misses >= 100 && stats.HitRate() < 0.5 {
				a.logger.Warn("role permission cache hit rate is low", fields...)
				continue
			}
			a.logger.Debug("role permission cache stats", fields...)
		}
	}
}

// Run serves HTTP and the invalidation consumer until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("failed to close kafka producer", zap.Error(err))
			}
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.tracer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("failed to shut down tracer", zap.Error(err))
			}
		}
	}()

	go a.reportCacheHealth(ctx)

	consumerErrCh := make(chan error, 1)
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				consumerErrCh <- err
			}
		}()
		defer func() {
			if err := a.consumer.Close(); err != nil {
				a.logger.Warn("failed to close consumer group", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authorization API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-consumerErrCh:
		return err
	}
}
