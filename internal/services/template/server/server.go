package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkflow-go/templates/internal/services/template/factory"
	"github.com/linkflow-go/templates/internal/services/template/handlers"
	"github.com/linkflow-go/templates/internal/services/template/initializer"
	"github.com/linkflow-go/templates/internal/services/template/repository"
	"github.com/linkflow-go/templates/internal/services/template/service"
	"github.com/linkflow-go/templates/pkg/cache"
	"github.com/linkflow-go/templates/pkg/config"
	"github.com/linkflow-go/templates/pkg/database"
	"github.com/linkflow-go/templates/pkg/events"
	"github.com/linkflow-go/templates/pkg/logger"
	"github.com/linkflow-go/templates/pkg/metrics"
	"github.com/linkflow-go/templates/pkg/middleware/auth"
	"github.com/linkflow-go/templates/pkg/ratelimit"
	"github.com/linkflow-go/templates/pkg/resilience"
	"github.com/linkflow-go/templates/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const serviceName = "template-service"

type Server struct {
	config      *config.Config
	logger      logger.Logger
	httpServer  *http.Server
	db          *database.DB
	cache       cache.Cache
	eventBus    events.EventBus
	telemetry   *telemetry.Telemetry
	initializer *initializer.Initializer
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	// Initialize tracing
	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database.ToDatabaseConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	templateRepo := repository.NewTemplateRepository(db)
	if cfg.Database.AutoMigrate {
		if err := templateRepo.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize Redis. The service runs without it; reads go to the store.
	redisClient, versionCache := connectCache(cfg, log)

	// Initialize event bus
	eventBus, err := newEventBus(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	// Initialize service
	manager := service.NewManager(
		templateRepo,
		factory.NewCatalog(),
		versionCache,
		eventBus,
		log,
		service.WithCacheTTL(cfg.Templates.CacheTTL()),
	)

	seeder := initializer.New(manager, initializer.Config{
		StartingVersion: cfg.Templates.StartingVersion,
		Categories:      cfg.Templates.Categories,
	}, log)

	// Initialize handlers
	pingers := []handlers.Pinger{db}
	if redisClient != nil {
		pingers = append(pingers, versionCache)
	}
	templateHandlers := handlers.NewTemplateHandlers(manager, seeder, cfg.Templates.ConflictRetries, log, pingers...)

	// Setup HTTP server
	router := setupRouter(cfg, templateHandlers, tel, redisClient, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Server{
		config:      cfg,
		logger:      log,
		httpServer:  httpServer,
		db:          db,
		cache:       versionCache,
		eventBus:    eventBus,
		telemetry:   tel,
		initializer: seeder,
	}, nil
}

func connectCache(cfg *config.Config, log logger.Logger) (*redis.Client, cache.Cache) {
	if !cfg.Redis.Enabled {
		return nil, cache.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, current version cache disabled", "addr", cfg.Redis.Addr(), "error", err)
		_ = client.Close()
		return nil, cache.NewNop()
	}

	opts := cache.DefaultOptions()
	opts.DefaultTTL = cfg.Templates.CacheTTL()
	opts.Name = "template_current_version"
	return client, cache.NewRedisCache(client, opts)
}

func newEventBus(cfg *config.Config, log logger.Logger) (events.EventBus, error) {
	var bus events.EventBus
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("No Kafka brokers configured, template events are dropped")
		bus = events.NewLogEventBus(log)
	} else {
		kafkaBus, err := events.NewKafkaEventBus(cfg.Kafka.ToKafkaConfig())
		if err != nil {
			return nil, err
		}
		bus = kafkaBus
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig("template-events")
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn("Event bus circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
	return events.NewResilientEventBus(bus, resilience.NewCircuitBreaker(breakerCfg)), nil
}

func setupRouter(cfg *config.Config, h *handlers.TemplateHandlers, tel *telemetry.Telemetry, redisClient *redis.Client, log logger.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())
	router.Use(tel.HTTPMiddleware())

	if rl := cfg.Server.RateLimit; rl.Enabled {
		var limiter ratelimit.RateLimiter
		if redisClient != nil {
			limiter = ratelimit.NewRedisRateLimiter(redisClient, rl.Burst, time.Duration(float64(rl.Burst)/rl.RPS*float64(time.Second)))
		} else {
			limiter = ratelimit.NewTokenBucketLimiter(rl.RPS, rl.Burst)
		}
		router.Use(ratelimit.WritesOnly(ratelimit.Middleware(limiter, ratelimit.IPKeyFunc)))
	}

	if len(cfg.Server.APIKeys) > 0 {
		router.Use(ratelimit.WritesOnly(auth.APIKeyMiddleware(auth.NewStaticKeys(cfg.Server.APIKeys))))
	} else {
		log.Warn("No API keys configured, template writes are unauthenticated")
	}

	// Health checks
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	h.RegisterRoutes(router)

	return router
}

// Start seeds default templates when configured, then serves HTTP until
// Shutdown is called.
func (s *Server) Start() error {
	if s.config.Templates.SeedOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		summary := s.initializer.Run(ctx)
		cancel()
		if summary.HasFailures() {
			s.logger.Warn("Some default templates could not be created", "failed", summary.Failed)
		}
	}

	s.logger.Info("Starting HTTP server", "port", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	// Close event bus
	if err := s.eventBus.Close(); err != nil {
		s.logger.Error("Failed to close event bus", "error", err)
	}

	// Close Redis
	if err := s.cache.Close(); err != nil {
		s.logger.Error("Failed to close Redis", "error", err)
	}

	// Flush traces
	if err := s.telemetry.Close(ctx); err != nil {
		s.logger.Error("Failed to flush traces", "error", err)
	}

	// Close database
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}

	return nil
}

// Middleware functions
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(serviceName, c.Request.Method, path, strconv.Itoa(c.Writer.Status()))
		metrics.RecordHTTPDuration(serviceName, c.Request.Method, path, time.Since(start).Seconds())
	}
}
