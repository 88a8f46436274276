package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertrepo "leadmatch_backend/internal/alerts/repository"
	alertsvc "leadmatch_backend/internal/alerts/service"
	catalogrepo "leadmatch_backend/internal/catalog/repository"
	"leadmatch_backend/internal/config"
	"leadmatch_backend/internal/events"
	identrepo "leadmatch_backend/internal/identifiers/repository"
	identsvc "leadmatch_backend/internal/identifiers/service"
	leadrepo "leadmatch_backend/internal/leads/repository"
	matchrepo "leadmatch_backend/internal/matching/repository"
	matchsvc "leadmatch_backend/internal/matching/service"
	"leadmatch_backend/internal/privacy"
	profrepo "leadmatch_backend/internal/profiles/repository"
	profsvc "leadmatch_backend/internal/profiles/service"
	"leadmatch_backend/internal/scheduler"
	"leadmatch_backend/migrations"
	"leadmatch_backend/platform/db"
	"leadmatch_backend/platform/logger"
	"leadmatch_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "privacy_mode", cfg.PrivacyMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, cfg.DatabaseURL, migrations.FS, "."); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	policy := privacy.NewPolicy(cfg.PrivacyMode)

	identifiers := identsvc.New(identrepo.New(pool), policy, eventBus, log, cfg.PhoneRegion)
	profiles := profsvc.New(profrepo.New(pool), policy, eventBus, log)
	matcher := matchsvc.New(matchrepo.New(pool), leadrepo.New(pool), catalogrepo.New(pool), eventBus, log)

	alerts := alertsvc.New(alertrepo.New(pool), alertChannels(cfg), eventBus, log, val)
	alerts.SubscribeToMatches(eventBus)

	dispatcher, err := scheduler.NewDispatcher(cfg, log)
	if err != nil {
		log.Error("failed to initialize dispatcher", "error", err)
		panic("failed to initialize dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, matcher, leadrepo.New(pool), profiles, identifiers, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
	log.Info("worker stopped")
}

func alertChannels(cfg *config.Config) []alertsvc.Channel {
	if cfg.SMTPHost == "" {
		return []alertsvc.Channel{alertsvc.NewNoopChannel("email")}
	}
	return []alertsvc.Channel{
		alertsvc.NewSMTPChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.AlertFrom),
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
