package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quest_engine_backend/internal/config"
	"quest_engine_backend/internal/controller"
	"quest_engine_backend/internal/repository"
	"quest_engine_backend/internal/service"
	"quest_engine_backend/pkg/configwatcher"
	"quest_engine_backend/pkg/database"
	"quest_engine_backend/pkg/logger"
	"quest_engine_backend/pkg/monitoring"
	"quest_engine_backend/pkg/security"
	"quest_engine_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	// ctx bounds every goroutine the app starts; Close cancels it.
	ctx  context.Context
	stop context.CancelFunc
}

type repositories struct {
	quest  *repository.QuestRepository
	ledger *repository.RewardLedgerRepository
	stream *repository.RewardStream
}

type services struct {
	quest      *service.QuestService
	dispatcher *service.RewardDispatcher
}

type controllers struct {
	quest  *controller.QuestController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig swaps in a reloaded configuration. Only the log level and
// registered callbacks take effect without a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	logger.SetLevel(cfg)
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("Config applied", zap.String("log_level", logger.Level().String()))
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	repos := &repositories{}
	if db != nil {
		repos.quest = repository.NewQuestRepository(db)
		repos.ledger = repository.NewRewardLedgerRepository(db)
	}
	if rdb != nil {
		repos.stream = repository.NewRewardStream(rdb, cfg.Redis.RewardStream)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	if repos.quest != nil {
		s.quest = service.NewQuestService(repos.quest)
	} else {
		logger.Log.Warn("No database configured, serving the built-in quest catalog")
		s.quest = service.NewSeedQuestService()
	}

	if repos.ledger != nil && repos.stream != nil {
		s.dispatcher = service.NewRewardDispatcher(repos.ledger, repos.stream, cfg.Quest.DispatchBatchSize)
	}
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		quest:  controller.NewQuestController(s.quest),
		health: controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	if s.dispatcher != nil {
		interval := time.Duration(a.Config.Quest.DispatchIntervalSeconds) * time.Second
		go s.dispatcher.Run(ctx, interval)
		logger.Log.Info("Reward dispatcher started", zap.Duration("interval", interval))
	}

	go func() {
		if err := configwatcher.WatchConfig(ctx, configFile, a.ApplyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

var (
	errNoDatabase        = errors.New("database is not configured and seed fallback is disabled")
	errMigrateNoDatabase = errors.New("migrate-only requires a configured database")
)

// checkStoreConfig reports whether the app may start without a database.
func checkStoreConfig(cfg *config.Config) error {
	if cfg.Database.Configured() {
		return nil
	}
	if cfg.MigrateOnly {
		return errMigrateNoDatabase
	}
	if !cfg.Quest.SeedFallback {
		return errNoDatabase
	}
	return nil
}

func openStores(cfg *config.Config) (*gorm.DB, *redis.Client) {
	if err := checkStoreConfig(cfg); err != nil {
		logger.Log.Fatal("Cannot open quest store", zap.Error(err))
	}
	if !cfg.Database.Configured() {
		return nil, nil
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式下默认不自动迁移，需要 -migrate 显式开启
	if cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		if cfg.Quest.SeedOnMigrate {
			if _, err := database.SeedQuests(context.Background(), repository.NewQuestRepository(db)); err != nil {
				logger.Log.Fatal("Failed to seed quests", zap.Error(err))
			}
		}
	}

	if !cfg.Redis.Enabled || cfg.MigrateOnly {
		return db, nil
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	return db, rdb
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, rdb := openStores(cfg)
	app := newApp(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("quest-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

// newApp wires repositories, services and routes over already opened stores.
// A nil db runs the quest service on the seed catalog.
func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	ctx, stop := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		ctx:    ctx,
		stop:   stop,
	}

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

// Close stops the background goroutines without touching the stores.
func (a *App) Close() {
	a.stop()
}

func (a *App) Run() {
	defer a.Close()
	a.startBackgroundTasks(a.ctx, a.services)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 先停止后台任务，避免关闭连接时仍在派发奖励
	a.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	logger.Log.Info("Server exiting")
}
