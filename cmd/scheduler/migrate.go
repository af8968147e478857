package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"go.uber.org/zap"
)

func migrate(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(db, driver, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.Run(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}
	logger.Info("Database schema is up to date",
		zap.String("driver", driver),
		zap.Int64("version", version))
	return nil
}
