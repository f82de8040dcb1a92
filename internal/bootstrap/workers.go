package bootstrap

import (
	"context"
	"sync"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/email"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/messaging/redis"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/worker"
)

// Workers publishes outbox events and emails issued codes.
type Workers struct {
	Processor *worker.OutboxProcessor
	Notifier  *notification.Notifier
	logger    *logger.Logger
}

func BrokerConfig(cfg config.RedisConfig) redis.Config {
	return redis.Config{
		URL:          cfg.URL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

func ProcessorConfig(cfg *config.Config) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		Channel:       cfg.Redis.Channel,
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Retention:     cfg.Outbox.Retention,
	}
}

// EmailService returns the SMTP sender, or a logging stand-in when SMTP is
// disabled.
func EmailService(cfg config.SMTPConfig, log *logger.Logger) email.Service {
	if !cfg.Enabled {
		return email.NewLogService(log)
	}
	return email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

// PayloadSealer returns the sealer for outbox.payload_key, or nil when no
// key is configured.
func PayloadSealer(cfg config.OutboxConfig) (*security.Sealer, error) {
	if cfg.PayloadKey == "" {
		return nil, nil
	}
	return security.NewSealer(cfg.PayloadKey)
}

func NewWorkers(
	cfg *config.Config,
	stores *Stores,
	broker messaging.Broker,
	log *logger.Logger,
	m *metrics.Metrics,
) (*Workers, error) {
	sealer, err := PayloadSealer(cfg.Outbox)
	if err != nil {
		return nil, err
	}
	notifierConfig := notification.Config{
		Channel: cfg.Redis.Channel,
		SiteURL: cfg.SMTP.SiteURL,
	}
	if sealer != nil {
		notifierConfig.Opener = sealer
	}

	processor := worker.NewOutboxProcessor(
		stores.Outbox,
		broker,
		ProcessorConfig(cfg),
		log.With("component", "outbox_processor"),
		m,
	)

	notifier := notification.NewNotifier(
		stores.Subjects,
		EmailService(cfg.SMTP, log),
		broker,
		notifierConfig,
		log.With("component", "notifier"),
		m,
	)

	return &Workers{Processor: processor, Notifier: notifier, logger: log}, nil
}

// Run blocks until ctx is cancelled and both workers have stopped.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		w.Processor.Start(ctx)
	}()

	go func() {
		defer wg.Done()
		if err := w.Notifier.Run(ctx); err != nil {
			w.logger.Error(err, "Notifier stopped")
		}
	}()

	wg.Wait()
}
