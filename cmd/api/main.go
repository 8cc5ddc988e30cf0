package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/patrol-auth/internal/application/account"
	"github.com/patrol-auth/internal/application/credential"
	"github.com/patrol-auth/internal/application/notify"
	"github.com/patrol-auth/internal/application/otp"
	"github.com/patrol-auth/internal/application/password"
	"github.com/patrol-auth/internal/application/session"
	"github.com/patrol-auth/internal/config"
	jwtinfra "github.com/patrol-auth/internal/infrastructure/jwt"
	"github.com/patrol-auth/internal/infrastructure/redisrate"
	"github.com/patrol-auth/internal/infrastructure/smtp"
	"github.com/patrol-auth/internal/infrastructure/sns"
	"github.com/patrol-auth/internal/infrastructure/storage"
	"github.com/patrol-auth/internal/metrics"
	transporthttp "github.com/patrol-auth/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogger(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := metrics.Register(nil); err != nil {
		log.Fatalf("register metrics: %v", err)
	}

	ctx := context.Background()

	// Tables are created on startup only outside production.
	stores, err := storage.Open(ctx, cfg, cfg.AppEnv != "production")
	if err != nil {
		log.Fatalf("open stores: %v", err)
	}
	resolver := stores.Resolver()

	hasher, err := credential.NewDefaultHasher(credential.Options{
		Cost:           cfg.BcryptCost,
		MaxConcurrency: cfg.HashMaxConcur,
		OnFallback:     func(op string) { metrics.HashFallbacks.WithLabelValues(op).Inc() },
		Observe: func(op string, d time.Duration) {
			metrics.HashDuration.WithLabelValues(op).Observe(d.Seconds())
		},
	})
	if err != nil {
		log.Fatalf("password hasher: %v", err)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	otpMgr := otp.NewManager(otp.ManagerDeps{
		Store:       stores.Challenges,
		TTL:         cfg.OTPExpiry,
		MaxAttempts: cfg.OTPMaxAttempts,
		RateLimit:   cfg.OTPRateLimit,
	})

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional, SMS delivery is skipped without it).
	var dispatcher *notify.Dispatcher
	if sender, err := sns.NewSender(cfg); err == nil {
		dispatcher = notify.NewDispatcher(mailer, sender, cfg.NotifyTimeout, cfg.OTPExpiry)
	} else {
		slog.Warn("SNS sender not available", "err", err)
		dispatcher = notify.NewDispatcher(mailer, nil, cfg.NotifyTimeout, cfg.OTPExpiry)
	}

	accounts := account.NewService(account.ServiceDeps{
		Accounts:    resolver,
		Hasher:      hasher,
		OTP:         otpMgr,
		Notifier:    dispatcher,
		RefreshRepo: stores.Refresh,
	})
	if err := accounts.EnsureSuperAdmin(ctx, cfg.DefaultSuperAdminEmail, cfg.DefaultSuperAdminPassword, cfg.DefaultSuperAdminName); err != nil {
		log.Fatalf("default super admin: %v", err)
	}

	deps := &transporthttp.Deps{
		Sessions: session.NewService(session.ServiceDeps{
			Resolver:    resolver,
			Hasher:      hasher,
			JWTProvider: jwtProvider,
			RefreshRepo: stores.Refresh,
		}),
		Passwords: password.NewService(password.ServiceDeps{
			Resolver:    resolver,
			Hasher:      hasher,
			OTP:         otpMgr,
			Notifier:    dispatcher,
			RefreshRepo: stores.Refresh,
		}),
		Accounts: accounts,
	}

	// Shared rate limiter when Redis is configured, per-process otherwise.
	if cfg.RedisURL != "" {
		client, err := redisrate.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		deps.Limiter = redisrate.New(client, "patrol-auth:rl:", cfg.RateLimitPerMinute, time.Minute)
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("pending otp deliveries abandoned", "err", err)
	}
	slog.Info("server stopped")
}

func setupLogger(env string) {
	var h slog.Handler
	if env == "production" {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}
