package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/catalog"
	"github.com/earshot-fm/earshot/internal/config"
	"github.com/earshot-fm/earshot/internal/database"
	"github.com/earshot-fm/earshot/internal/engagement"
	"github.com/earshot-fm/earshot/internal/handlers"
	"github.com/earshot-fm/earshot/internal/messaging"
	"github.com/earshot-fm/earshot/internal/middleware"
	"github.com/earshot-fm/earshot/internal/services"
	"github.com/earshot-fm/earshot/internal/vectorstore"
)

type App struct {
	config    *config.Config
	logger    *logrus.Logger
	db        *database.Database
	vectors   vectorstore.Store
	qdrant    *vectorstore.QdrantStore
	publisher messaging.EventPublisher
	handlers  *handlers.Handlers
	router    *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	provider, err := app.setupCatalog()
	if err != nil {
		return nil, err
	}

	store := app.setupEngagementStore()

	if err := app.setupVectorStore(); err != nil {
		return nil, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		app.publisher = messaging.NewKafkaPublisher(cfg.Kafka, app.logger)
	} else {
		app.publisher = messaging.NoopPublisher{}
		app.logger.Info("No Kafka brokers configured, engagement events disabled")
	}

	health := services.NewHealthService(app.logger)
	app.registerHealthChecks(health)

	metrics := services.NewMetrics(app.logger)
	sessions := services.NewSessionManager(cfg.Session, app.logger)

	recommender := services.NewRecommendationService(
		provider, store, app.vectors, app.publisher,
		sessions, metrics, cfg, app.logger,
	)

	app.handlers = handlers.New(app.logger, recommender, health)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.publisher.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing event publisher")
	}
	if a.qdrant != nil {
		if err := a.qdrant.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing vector store connection")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func (a *App) setupCatalog() (catalog.Provider, error) {
	switch a.config.Catalog.Mode {
	case "postgres":
		if a.db.PG == nil {
			return nil, fmt.Errorf("catalog mode is postgres but database.url is not configured")
		}
		return catalog.NewPostgresProvider(a.db.PG, a.logger), nil
	case "file", "":
		provider, err := catalog.NewFileProvider(a.config.Catalog.Path, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load episode catalog: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown catalog mode: %q", a.config.Catalog.Mode)
	}
}

func (a *App) setupEngagementStore() engagement.Store {
	if a.db.PG != nil {
		return engagement.NewPostgresStore(a.db.PG, a.db.Redis, a.config.Session.MaxStoredEngagements, a.logger)
	}
	a.logger.Info("No database configured, engagement history held in memory")
	return engagement.NewMemoryStore(a.config.Session.MaxStoredEngagements)
}

func (a *App) setupVectorStore() error {
	if a.config.Qdrant.URL == "" {
		a.vectors = vectorstore.NewMemoryStore()
		a.logger.Info("No Qdrant configured, vectors held in memory")
		return nil
	}

	strategy := services.NewEmbeddingStrategy(a.config.Embedding)
	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		URL:                 a.config.Qdrant.URL,
		APIKey:              a.config.Qdrant.APIKey,
		Dims:                uint64(a.config.Embedding.Dimensions),
		MaxExcludedPushdown: a.config.Session.MaxExcludedPerQuery,
		FetchBatchSize:      a.config.Session.EmbeddingFetchBatch,
		FetchWorkers:        a.config.Session.EmbeddingFetchWorkers,
	}, strategy.Namespace(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureReady(ctx); err != nil {
		return fmt.Errorf("failed to prepare vector collection: %w", err)
	}

	a.qdrant = store
	a.vectors = store
	return nil
}

func (a *App) registerHealthChecks(health *services.HealthService) {
	if a.db.PG != nil {
		health.RegisterCritical("postgresql", func(ctx context.Context) error {
			return a.db.PG.Ping(ctx)
		})
	}
	if a.db.Redis != nil {
		health.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.db.Redis.Ping(ctx).Err()
		})
	}
	if a.qdrant != nil {
		health.RegisterCritical("qdrant", a.qdrant.Healthy)
	}
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	router.GET("/health", a.handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if a.config.RateLimit.Enabled && a.db.Redis != nil {
		v1.Use(middleware.RateLimit(a.db.Redis, a.config.RateLimit, a.logger))
	}
	{
		v1.POST("/sessions", a.handlers.Session.Create)
		v1.POST("/sessions/more", a.handlers.Session.LoadMore)
		v1.POST("/sessions/engage", a.handlers.Session.Engage)
	}

	a.router = router
}
