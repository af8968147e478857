package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller"
	"github.com/Freeeeeet/lesson_scheduler/internal/reconciler"
	"github.com/Freeeeeet/lesson_scheduler/internal/recurrence"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/sqlite"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting lesson scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("timezone", cfg.Timezone.String()),
		zap.Bool("bot_enabled", cfg.BotEnabled()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Scheduler stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Scheduler stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	expander := recurrence.NewExpander(cfg.Timezone)
	rec := reconciler.NewReconciler(store, expander, logger)

	scheduler := app.NewScheduler(store, rec, cfg.MaterializeInterval, cfg.MaterializeHorizonMonths, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if !cfg.BotEnabled() {
		logger.Info("TELEGRAM_TOKEN is not set, running materialization only")
		<-ctx.Done()
		return nil
	}

	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	botController := controller.NewBotController(
		b,
		service.NewUserService(store, logger),
		service.NewScheduleService(store, rec, cfg.MaterializeHorizonMonths, logger),
		service.NewAttendanceService(store, rec, logger),
		cfg.Timezone,
		logger,
	)
	if err := botController.RegisterHandlers(ctx); err != nil {
		return fmt.Errorf("register bot handlers: %w", err)
	}

	return botController.Start(ctx)
}

// openStore открывает хранилище выбранного драйвера и применяет миграции
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Store, func(), error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dsn := cfg.DBDSN
		if !strings.HasPrefix(dsn, "file:") {
			dsn = sqlite.DSN(dsn)
		}

		store, err := sqlite.Open(ctx, dsn, cfg.StoreTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := migrate(ctx, store.DB(), app.DriverSQLite, logger); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}

		db := stdlib.OpenDBFromPool(pool)
		if err := migrate(ctx, db, app.DriverPostgres, logger); err != nil {
			_ = db.Close()
			pool.Close()
			return nil, nil, err
		}

		closeAll := func() {
			_ = db.Close()
			pool.Close()
		}
		return repository.NewStore(pool, cfg.StoreTimeout), closeAll, nil
	}
}
