package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Jabakyo/next-class/internal/cache"
	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/database"
	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/Jabakyo/next-class/internal/logging"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/modules/verification"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/server"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/token"
	"github.com/Jabakyo/next-class/internal/upload"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options for the CLI.
type Options struct {
	Port int `help:"Port to listen on (overrides SERVER_PORT)" short:"p"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		cfg := config.Load()
		logger, logCloser := logging.New(cfg.Log)
		slog.SetDefault(logger)
		logger.Info("configuration loaded successfully", "env", cfg.Server.Env, "store", cfg.Store.Driver)

		fatal := func(msg string, err error) {
			logger.Error(msg, "error", err)
			logCloser.Close()
			os.Exit(1)
		}
		ctx := context.Background()

		// --- Database & Cache (both optional) ---
		var pool *pgxpool.Pool
		if cfg.Database.URL != "" {
			var err error
			pool, err = database.NewPostgresPool(ctx, cfg.Database.URL, logger)
			if err != nil {
				fatal("failed to connect to postgres", err)
			}
			logger.Info("successfully connected to postgres database")
		}

		var locker lock.Locker = lock.NewLocal(cfg.Lock.Timeout)
		var closeRedis func() error
		if cfg.Lock.Driver == "redis" {
			redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.URL, logger)
			if err != nil {
				fatal("failed to connect to redis", err)
			}
			closeRedis = redisClient.Close
			locker = lock.NewRedis(redisClient, cfg.Lock.Timeout, cfg.Lock.TTL, logger)
			logger.Info("successfully connected to redis")
		}

		// --- Document store ---
		if cfg.Store.Driver == "postgres" && pool != nil {
			if err := store.MigrateUp(ctx, pool); err != nil {
				fatal("failed to apply migrations", err)
			}
		}
		docs, err := store.Open(cfg.Store, cfg.Lock.Timeout, pool, logger)
		if err != nil {
			fatal("failed to open document store", err)
		}

		uploads, err := upload.Open(ctx, cfg.Upload)
		if err != nil {
			fatal("failed to open upload storage", err)
		}

		// --- Notifications ---
		var mailer notification.Mailer
		switch cfg.Mail.Driver {
		case "smtp":
			mailer = notification.NewSMTPMailer(cfg.SMTP, logger)
		default:
			mailer = notification.NewLogMailer(logger)
		}
		engine, err := templates.NewEngine(cfg.Mail.TemplateDir, logger)
		if err != nil {
			fatal("failed to load email templates", err)
		}
		dispatcher := notification.NewDispatcher(engine, mailer, cfg.Notify.Timeout, logger)
		queue := notification.NewQueue(notification.QueueConfig{
			Sender:      dispatcher,
			Store:       docs,
			Log:         logger,
			Size:        cfg.Notify.QueueSize,
			MaxAttempts: cfg.Notify.MaxAttempts,
			BaseDelay:   time.Second,
		})

		// --- Module Initialization (Bottom-Up) ---
		userRepo := user.NewRepository(docs)
		verificationService := verification.NewService(&verification.Config{
			Users:    userRepo,
			Requests: verification.NewRepository(docs),
			Store:    docs,
			Locker:   locker,
			Uploads:  uploads,
			Notifier: queue,
			Logger:   logger,
			Config:   cfg,
		})
		userService := user.NewService(&user.Config{
			Repo:     userRepo,
			Store:    docs,
			Locker:   locker,
			Notifier: queue,
			Schedule: verificationService,
			Logger:   logger,
			Config:   cfg,
		})

		router := server.New(cfg, logger, server.Services{
			Users:        userService,
			Verification: verificationService,
		})

		port := cfg.Server.Port
		if options.Port != 0 {
			port = strconv.Itoa(options.Port)
		}
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		janitorCtx, stopJanitor := context.WithCancel(ctx)
		hooks.OnStart(func() {
			go purgeTokens(janitorCtx, logger, time.Hour,
				token.New[user.PendingSignup](docs, store.EmailVerificationTokens, cfg.Auth.TokenTTL),
				token.New[user.ResetRequest](docs, store.ResetTokens, cfg.Auth.TokenTTL),
			)

			logger.Info(fmt.Sprintf("Starting server on port %s...", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("server failed to start", err)
			}
		})

		hooks.OnStop(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			stopJanitor()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown failed", "error", err)
			}
			// Drain queued emails before the store they dead-letter into goes away.
			if err := queue.Close(shutdownCtx); err != nil {
				logger.Error("notification queue did not drain", "error", err)
			}
			if err := docs.Close(); err != nil {
				logger.Error("failed to close document store", "error", err)
			}
			if pool != nil {
				pool.Close()
			}
			if closeRedis != nil {
				_ = closeRedis()
			}
			logger.Info("server stopped")
			logCloser.Close()
		})
	})
	cli.Run()
}

type purger interface {
	Purge(ctx context.Context) (int, error)
}

// purgeTokens drops expired and long-used tokens on a fixed interval.
func purgeTokens(ctx context.Context, log *slog.Logger, every time.Duration, ledgers ...purger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, l := range ledgers {
			n, err := l.Purge(ctx)
			if err != nil {
				log.Warn("token purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("purged stale tokens", "count", n)
			}
		}
	}
}
