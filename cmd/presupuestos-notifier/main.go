// Command presupuestos-notifier consumes the notifications published by the
// server and writes them to the log.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"presupuestos/internal/amqp"
	"presupuestos/internal/cli"
	applog "presupuestos/internal/log"
	"presupuestos/internal/notify"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting presupuestos-notifier")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", applog.FieldError, err)
		}
	})

	sink := notify.NewLogSink(logger.With(applog.FieldComponent, applog.ComponentWorker))
	err = client.ConsumeNotifications(ctx, func(ctx context.Context, msg *amqp.NotificationMessage) error {
		sink.Present(ctx, msg.Notification())
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption stopped", applog.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Notifier stopped")
}
