package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/providerhub-backend/internal/config"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/handlers"
	"github.com/AnshRaj112/providerhub-backend/internal/logger"
	"github.com/AnshRaj112/providerhub-backend/internal/middleware"
	"github.com/AnshRaj112/providerhub-backend/internal/routes"
	"github.com/AnshRaj112/providerhub-backend/internal/services"
	"github.com/AnshRaj112/providerhub-backend/internal/validator"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		log.Debug("No .env file found")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI, database.PoolOptions{
		MaxOpenConns:   cfg.DBMaxOpenConns,
		ConnMaxIdle:    cfg.DBConnMaxIdle,
		AcquireTimeout: cfg.DBAcquireTimeout,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	realtime, counters := realtimeAndCounters(ctx, rdb, log)

	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.SMTPHost != "" {
		mailer = services.NewSMTPMailer(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		log.Info("SMTP mailer configured")
	} else {
		log.Warn("SMTP_HOST not set; password reset emails are logged instead of sent")
	}

	var uploader services.Uploader
	if cfg.CloudinaryEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.WithError(err).Warn("File uploads will not be available")
		} else {
			uploader = cld
			log.Info("Cloudinary service initialized")
		}
	} else {
		log.Warn("Cloudinary credentials not found; file uploads will not be available")
	}

	globalLimiter := middleware.NewKeyedLimiter(rate.Limit(20), 40, 10*time.Minute)
	// Shared by POST /chats/{id}/messages and socket message frames.
	messageLimiter := middleware.NewKeyedLimiter(rate.Every(time.Second), 10, 10*time.Minute)

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, db)

	h := handlers.New(handlers.Deps{
		Auth:           services.NewAuthService(db, tokens, mailer, cfg.FrontendURL, log),
		Providers:      services.NewProviderService(db),
		Chats:          services.NewChatService(db, realtime, log),
		Feed:           services.NewFeedService(db),
		Favorites:      services.NewFavoriteService(db),
		Blacklist:      services.NewBlacklistService(db),
		Reports:        services.NewReportService(db),
		Admin:          services.NewAdminService(db, log),
		Realtime:       realtime,
		Tokens:         tokens,
		MessageLimiter: messageLimiter,
		Uploader:       uploader,
		Validator:      validator.New(),
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	go globalLimiter.RunSweeper(ctx, time.Minute)
	go messageLimiter.RunSweeper(ctx, time.Minute)
	go purgeRevokedTokens(ctx, tokens, log)

	router := routes.NewRouter(h, routes.Options{
		Log:        log,
		Production: cfg.IsProduction(),
		Counters:   counters,
		AuthLimit: middleware.CounterLimitConfig{
			Name:   "auth",
			Max:    cfg.AuthRateLimitMax,
			Window: cfg.AuthRateLimitWindow,
		},
		GlobalLimiter:  globalLimiter,
		MessageLimiter: messageLimiter,
		Ping:           db.PingContext,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("ProviderHub backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
		os.Exit(1)
	}
}

// realtimeAndCounters picks the Redis-backed implementations when a client is available.
func realtimeAndCounters(ctx context.Context, rdb *redis.Client, log *logrus.Logger) (services.Realtime, services.CounterStore) {
	if rdb != nil {
		return services.NewRedisRealtime(rdb, log), services.NewRedisCounterStore(rdb)
	}
	counters := services.NewMemoryCounterStore()
	go counters.RunSweeper(ctx, time.Minute)
	return services.NewLocalHub(), counters
}

func purgeRevokedTokens(ctx context.Context, tokens *services.TokenService, log *logrus.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.PurgeExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("Failed to purge revoked tokens")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("Purged expired revoked tokens")
			}
		}
	}
}
