package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"presupuestos/internal/amqp"
	"presupuestos/internal/auth"
	"presupuestos/internal/backend"
	"presupuestos/internal/cli"
	"presupuestos/internal/config"
	apphttp "presupuestos/internal/http"
	applog "presupuestos/internal/log"
	"presupuestos/internal/notify"
	"presupuestos/internal/sessions"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *slog.Logger, cfg *config.Config) error {
	ctx, _ := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", applog.FieldError, err)
			}
		}()
	}
	b := res.Backend

	store, closeStore, err := sessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var sink notify.Sink = notify.NewLogSink(logger.With(applog.FieldComponent, applog.ComponentNotify))
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer client.Close()
		sink = notify.Multi(sink, client)
		logger.Info("Publishing notifications", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := auth.NewService(b.Identity, b.Profiles, auth.WithLogger(logger))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:               svc,
		Sessions:           sessions.NewManager(store, cfg.SessionTTL, sessions.CookieOptions{Secure: cfg.CookieSecure}),
		Presupuestos:       b.Presupuestos,
		Documents:          b.Documents,
		Sink:               sink,
		ResetPolicy:        cfg.ResetPolicy(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              b.Ping,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting presupuestos server",
			"port", cfg.Port,
			applog.FieldBackend, b.Type.String(),
			"session_store", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func sessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return sessions.NewMemoryStore(), func() {}, nil
	}
	client, err := sessions.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	return sessions.NewRedisStore(client), func() { _ = client.Close() }, nil
}
