package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/regdesk/internal/auth"
	"github.com/JonMunkholm/regdesk/internal/config"
	"github.com/JonMunkholm/regdesk/internal/core"
	"github.com/JonMunkholm/regdesk/internal/filestore"
	"github.com/JonMunkholm/regdesk/internal/logging"
	"github.com/JonMunkholm/regdesk/internal/mailer"
	"github.com/JonMunkholm/regdesk/internal/otp"
	"github.com/JonMunkholm/regdesk/internal/store"
	"github.com/JonMunkholm/regdesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"file_store_driver", cfg.Files.Driver,
		"otp_store", cfg.OTP.StoreDriver,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	records, cleanup, err := newRecordStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up record store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up file store", "error", err)
		os.Exit(1)
	}

	otpStore, err := newOTPStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up otp store", "error", err)
		os.Exit(1)
	}

	registry := mailer.NewRegistry(cfg.SMTP)
	slog.Info("smtp providers configured", "providers", registry.Names())

	service := core.NewService(records, files, registry, cfg.SMTP.From, cfg.SMTP.FromName, slog.Default())

	otpTransport, otpSender, err := registry.Get("gmail")
	if err != nil {
		slog.Warn("otp mail provider not configured; otp issuance will fail", "error", err)
		otpTransport = mailer.Unconfigured{Name: "gmail"}
	}
	otpFrom := cfg.SMTP.From
	if otpFrom == "" {
		otpFrom = otpSender
	}
	otps := otp.NewService(otpStore, otpTransport, otpFrom, cfg.SMTP.FromName,
		cfg.OTP.AdminEmails, cfg.OTP.TTL, slog.Default())

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	server := web.NewServer(cfg, service, otps, tokens, files)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// newRecordStore builds the configured record store. The returned cleanup
// closes the underlying pool, if any.
func newRecordStore(ctx context.Context, cfg *config.Config) (store.RecordStore, func(), error) {
	if cfg.Store.Driver == "memory" {
		return store.NewMemory(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Store.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Store.MaxConns)
	poolConfig.MinConns = int32(cfg.Store.MinConns)
	poolConfig.MaxConnLifetime = cfg.Store.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Store.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Store.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return pg, pool.Close, nil
}

func newFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if cfg.Files.Driver == "memory" {
		return filestore.NewMemory(), nil
	}
	return filestore.NewS3(ctx, cfg.Files)
}

func newOTPStore(ctx context.Context, cfg *config.Config) (otp.Store, error) {
	if cfg.OTP.StoreDriver != "redis" {
		return otp.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.OTP.RedisAddr,
		Password: cfg.OTP.RedisPassword,
		DB:       cfg.OTP.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return otp.NewRedisStore(client), nil
}
