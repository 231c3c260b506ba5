package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"rescueboard/docs" // swagger docs
	"rescueboard/internal/auth"
	"rescueboard/internal/cache"
	"rescueboard/internal/config"
	"rescueboard/internal/db"
	"rescueboard/internal/handler"
	"rescueboard/internal/logging"
	"rescueboard/internal/notification"
	"rescueboard/internal/repository"
	"rescueboard/internal/router"
	"rescueboard/internal/service"
	"rescueboard/internal/storage"
	"rescueboard/internal/validation"
)

// @title Food Rescue Board API
// @version 1.0
// @description Campus surplus-food board: post, claim and moderate food listings with bearer-token authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg)
	if err != nil {
		fatal(logger, "database init", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		fatal(logger, "auto-migrate", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, logins will fail until it is back", "addr", cfg.RedisAddr, "error", err)
	}

	blobs, localStore, err := newBlobStore(ctx, cfg)
	if err != nil {
		fatal(logger, "blob store init", err)
	}
	notifier := newNotifier(ctx, cfg, logger)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	foodRepo := repository.NewFoodRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)
	v := validation.New()

	// Initialize services
	userService := service.NewUserService(userRepo, cacheClient)
	authService := service.NewAuthService(userRepo, userService, jwtService, tokenStore, v)
	foodService := service.NewFoodService(foodRepo, userRepo, blobs, notifier, v, logger, service.FoodServiceOptions{
		AdminOnlyListings: cfg.AdminOnlyListings,
	})

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Config:      cfg,
		Logger:      logger,
		Validator:   v,
		JWTService:  jwtService,
		AuthService: authService,
		AuthHandler: handler.NewAuthHandler(authService),
		FoodHandler: handler.NewFoodHandler(foodService),
		LocalStore:  localStore,
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}
	logger.Info("swagger documentation available", "url", cfg.AppURL+"/swagger/index.html")

	if cfg.ExpireAfter > 0 {
		go service.RunExpirySweeper(ctx, foodService, cfg.ExpireAfter, cfg.ExpirySweepInterval, logger)
		logger.Info("expiry sweeper started", "expire_after", cfg.ExpireAfter, "interval", cfg.ExpirySweepInterval)
	}

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server start", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, *storage.LocalStore, error) {
	switch cfg.StorageDriver {
	case "s3":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.AWSS3Bucket,
			Region:    cfg.AWSS3Region,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			PublicURL: cfg.AWSS3PublicURL,
		})
		return s3Store, nil, err
	default:
		local, err := storage.NewLocalStore(cfg.StorageDir, cfg.StoragePublicURL())
		return local, local, err
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) notification.Notifier {
	if !cfg.FCMEnabled {
		return notification.Noop{}
	}
	fcm, err := notification.NewFCM(ctx, cfg.FCMCredentials)
	if err != nil {
		logger.Error("fcm disabled", "error", err)
		return notification.Noop{}
	}
	return fcm
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
