package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/background"
	"github.com/tick42/quicksilver/internal/config"
	"github.com/tick42/quicksilver/internal/database"
	"github.com/tick42/quicksilver/internal/handlers"
	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/internal/repositories"
	"github.com/tick42/quicksilver/internal/routes"
	"github.com/tick42/quicksilver/internal/services"
	"github.com/tick42/quicksilver/internal/storage"
	pkgauth "github.com/tick42/quicksilver/pkg/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	assets, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize asset store", slog.Any("error", err))
		os.Exit(1)
	}

	userRepo := repositories.NewUserRepository(db)
	extensionRepo := repositories.NewExtensionRepository(db)

	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	guard := auth.NewGuard(tm, userRepo, logger)

	userService := services.NewUserService(userRepo, logger)
	authService := services.NewAuthService(userRepo, tm, logger)
	extensionService := services.NewExtensionService(extensionRepo, assets, logger)
	catalogService := services.NewCatalogService(extensionRepo, logger)

	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to bootstrap admin account", slog.Any("error", err))
		os.Exit(1)
	}

	syncer := background.NewSyncer(
		extensionRepo,
		background.NewGitHubClient(cfg.GitHub.APIBase),
		cfg.GitHub.SyncInterval,
		logger,
	)
	syncer.Start(ctx)
	defer syncer.Stop()

	router := routes.NewRouter(routes.Dependencies{
		Config:           cfg,
		DB:               db,
		Guard:            guard,
		UserHandler:      handlers.NewUserHandler(userService, authService, extensionService, assets, logger),
		ExtensionHandler: handlers.NewExtensionHandler(extensionService, catalogService, assets, logger),
		Logger:           logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("port", cfg.Server.Port), slog.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// ensureAdminUser creates the bootstrap admin account on first start when
// ADMIN_USERNAME and ADMIN_PASSWORD are set. Without one, nothing could
// ever approve extensions or mint further admins.
func ensureAdminUser(ctx context.Context, repo *repositories.UserRepository, logger *slog.Logger) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = repo.Create(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		State:        models.UserStateActive,
	})
	if err != nil {
		return err
	}

	logger.Info("bootstrap admin account created", slog.String("username", username))

	return nil
}
