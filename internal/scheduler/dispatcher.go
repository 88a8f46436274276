package scheduler

import (
	"context"
	"time"

	"leadmatch_backend/internal/config"
	"leadmatch_backend/platform/logger"
)

// Dispatcher enqueues the recurring maintenance jobs on fixed intervals:
// match backfill, profile reconciliation, and identifier cleanup. It runs
// alongside the worker and shares its queue.
type Dispatcher struct {
	client *Client
	log    *logger.Logger

	backfillInterval  time.Duration
	reconcileInterval time.Duration
	cleanupInterval   time.Duration

	topN          int
	minShared     int
	retentionDays int
}

func NewDispatcher(cfg *config.Config, log *logger.Logger) (*Dispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		client:            client,
		log:               log,
		backfillInterval:  6 * time.Hour,
		reconcileInterval: time.Hour,
		cleanupInterval:   24 * time.Hour,
		topN:              cfg.MatchTopN,
		minShared:         cfg.DuplicateMinShared,
		retentionDays:     cfg.IdentifierRetentionDays,
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	backfill := time.NewTicker(d.backfillInterval)
	defer backfill.Stop()
	reconcile := time.NewTicker(d.reconcileInterval)
	defer reconcile.Stop()
	cleanup := time.NewTicker(d.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-backfill.C:
			if err := d.client.EnqueueMatchBackfill(ctx, MatchBackfillPayload{TopN: d.topN}); err != nil {
				d.log.Warn("failed to enqueue match backfill", "error", err)
			}
		case <-reconcile.C:
			if err := d.client.EnqueueReconcileProfiles(ctx, ReconcileProfilesPayload{MinShared: d.minShared}); err != nil {
				d.log.Warn("failed to enqueue profile reconcile", "error", err)
			}
		case <-cleanup.C:
			if err := d.client.EnqueueCleanupIdentifiers(ctx, CleanupIdentifiersPayload{RetentionDays: d.retentionDays}); err != nil {
				d.log.Warn("failed to enqueue identifier cleanup", "error", err)
			}
		}
	}
}
