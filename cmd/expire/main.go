package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"rescueboard/internal/config"
	"rescueboard/internal/db"
	"rescueboard/internal/logging"
	"rescueboard/internal/repository"
	"rescueboard/internal/service"
	"rescueboard/internal/validation"
)

// expire marks available listings older than -after (or EXPIRE_AFTER) as expired, once.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	after := flag.Duration("after", cfg.ExpireAfter, "expire available foods older than this")
	flag.Parse()
	if *after <= 0 {
		logger.Error("nothing to do: set -after or EXPIRE_AFTER to a positive duration")
		os.Exit(2)
	}

	gormDB, err := db.Open(cfg)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}

	foodService := service.NewFoodService(
		repository.NewFoodRepository(gormDB),
		repository.NewUserRepository(gormDB),
		nil, nil, validation.New(), logger,
		service.FoodServiceOptions{},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := foodService.ExpireStale(ctx, *after)
	if err != nil {
		fatal(logger, "expire failed", err)
	}
	logger.Info("expire completed", "expired", n, "older_than", after.String())
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
