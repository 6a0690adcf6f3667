// Command worker drains the notification queue and delivers each
// message over SMTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/config"
	"github.com/kashf99/park-booking/internal/logger"
	"github.com/kashf99/park-booking/internal/queue"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "park-booking-mailer",
		Development: cfg.IsDevelopment(),
	})
	defer func() { _ = log.Sync() }()

	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for the notification worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer, err := queue.NewSMTPMailer(cfg.SMTP, cfg.MailFrom)
	if err != nil {
		log.Fatal("failed to configure mailer", zap.Error(err))
	}
	log.Info("notification worker starting", zap.String("smtp_host", cfg.SMTP.Host))
	err = queue.NewConsumer(cfg.RabbitMQURL, mailer, log).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("notification worker stopped", zap.Error(err))
	}
	log.Info("notification worker stopped")
}
