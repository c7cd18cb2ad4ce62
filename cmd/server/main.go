package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/app"
	"github.com/Freeeeeet/driving_booking/internal/cache"
	"github.com/Freeeeeet/driving_booking/internal/config"
	"github.com/Freeeeeet/driving_booking/internal/controller"
	"github.com/Freeeeeet/driving_booking/internal/controller/httpapi"
	"github.com/Freeeeeet/driving_booking/internal/engine"
	"github.com/Freeeeeet/driving_booking/internal/events"
	"github.com/Freeeeeet/driving_booking/internal/metrics"
	"github.com/Freeeeeet/driving_booking/internal/progress"
	"github.com/Freeeeeet/driving_booking/internal/repository"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
	"github.com/Freeeeeet/driving_booking/internal/repository/memory"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("👋 Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting driving school booking engine",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.String("timezone", cfg.Timezone))

	m := metrics.New()

	// Хранилище
	var (
		stores engine.Stores
		users  controller.UserLookup
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		if err := migrator.Run(ctx); err != nil {
			migrator.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
		migrator.Close()

		repo := base.NewRepository(pool, cfg.TxMaxRetries)
		repo.OnRetry(func(attempt int, err error) {
			m.TxRetry()
			logger.Debug("Retrying serializable transaction", zap.Int("attempt", attempt), zap.Error(err))
		})
		stores = engine.PostgresStores(repo)
		users = repository.NewUserRepository(repo)
	default:
		store := memory.NewStore()
		stores = engine.MemoryStores(store)
		users = store
		logger.Warn("⚠️  Using in-memory storage, data is lost on restart")
	}

	// Кэш прогресса и события
	var (
		progressCache service.ProgressCache
		publisher     events.Publisher
	)
	if cfg.RedisAddr != "" {
		rcfg := cache.DefaultConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPassword
		rcfg.DB = cfg.RedisDB

		rdb, err := cache.NewRedis(ctx, rcfg)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()

		progressCache = cache.NewRedisProgress(rdb, cfg.ProgressCacheTTL)
		publisher = events.Fanout{events.NewLogPublisher(logger), events.NewRedisPublisher(rdb.Client())}
	} else {
		progressCache = cache.NewMemoryProgress(cfg.ProgressCacheTTL)
		publisher = events.NewLogPublisher(logger)
	}

	eng := engine.Build(stores, engine.Options{
		Now:              time.Now,
		Location:         cfg.Location(),
		LeadTime:         cfg.BookingLeadTime,
		Thresholds:       progress.Thresholds{MinHours: cfg.ReadyMinHours, MinRating: cfg.ReadyMinRating},
		RequireReadiness: cfg.ExamRequireReady,
		ProgressCache:    progressCache,
		Publisher:        publisher,
		Metrics:          m,
	}, logger)

	// Фоновое закрытие просроченных форм
	scheduler := app.NewScheduler(app.FormCloserFunc(func(ctx context.Context) (int64, error) {
		res := eng.CloseExpiredForms(ctx)
		return res.Data, res.Err()
	}), cfg.FormCloseInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Telegram бот, если задан токен
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		botController := controller.NewBotController(b, eng, users, time.Now, cfg.Location(), logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go botController.Start(ctx)
	} else {
		logger.Info("TELEGRAM_TOKEN is empty, bot disabled")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(eng, m.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
