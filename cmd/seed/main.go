package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"rescueboard/internal/config"
	"rescueboard/internal/db"
	"rescueboard/internal/logging"
	"rescueboard/internal/repository"
	"rescueboard/internal/seed"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting seed script")

	gormDB, err := db.Open(cfg)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	logger.Info("connected to database", "driver", cfg.DBDriver)

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(gormDB); err != nil {
		fatal(logger, "failed to run migrations", err)
	}

	res, err := seed.Run(context.Background(), repository.NewUserRepository(gormDB), repository.NewFoodRepository(gormDB), time.Now())
	if err != nil {
		fatal(logger, "failed to seed", err)
	}

	logger.Info("seed completed",
		"users_created", res.UsersCreated,
		"users_existing", res.UsersExisting,
		"foods_created", res.FoodsCreated,
	)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
