package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"direct-chat/config"
	"direct-chat/models"
	"direct-chat/routes"
	"direct-chat/services"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.OpenDB(cfg, logger)
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return err
	}

	media, err := newMediaStore(cfg)
	if err != nil {
		return err
	}

	var limiter services.SendLimiter
	if cfg.RedisURL != "" {
		redisLimiter, err := services.NewRedisLimiter(ctx, cfg.RedisURL, cfg.SendRateLimit, cfg.SendRateWindow)
		if err != nil {
			return err
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		logger.Info().Int("limit", cfg.SendRateLimit).Dur("window", cfg.SendRateWindow).Msg("send rate limiting enabled")
	}

	registry := services.NewConnectionRegistry()
	hub := services.NewHub(registry, logger, cfg.WSPingInterval, cfg.WSPongTimeout)
	store := services.NewMessageStore(db)
	router := services.NewDeliveryRouter(registry, hub, logger)
	tokens := services.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	deps := routes.Dependencies{
		Log:         logger,
		Tokens:      tokens,
		Users:       services.NewUserService(db),
		Messages:    services.NewMessageService(store, media, router, logger),
		Store:       store,
		Hub:         hub,
		Limiter:     limiter,
		Upgrader:    services.NewUpgrader(cfg.CORSOrigins),
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.MediaDriver == "local" {
		deps.MediaDir, deps.MediaURL = cfg.MediaDir, cfg.MediaBaseURL
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.RegisterRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMediaStore(cfg *config.Config) (services.MediaStore, error) {
	switch cfg.MediaDriver {
	case "cloudinary":
		return services.NewCloudinaryStore(cfg.CloudinaryCloud, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	default:
		return services.NewLocalMediaStore(cfg.MediaDir, cfg.MediaBaseURL)
	}
}
