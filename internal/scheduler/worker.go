package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"leadmatch_backend/internal/config"
	matchrepo "leadmatch_backend/internal/matching/repository"
	"leadmatch_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Matcher scores one lead against the active catalog.
type Matcher interface {
	MatchLeadToServices(ctx context.Context, leadID uuid.UUID, topN int) ([]matchrepo.Match, error)
}

// LeadLister supplies the open leads for a backfill run.
type LeadLister interface {
	ListOpenIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Reconciler merges detected duplicate profiles.
type Reconciler interface {
	ReconcileDuplicates(ctx context.Context, minShared int) (int, error)
}

// Cleaner runs the identifier retention sweep.
type Cleaner interface {
	CleanupOld(ctx context.Context, retentionDays int) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	matcher Matcher
	leads   LeadLister
	prof    Reconciler
	idents  Cleaner
	log     *logger.Logger

	defaultTopN      int
	defaultMinShared int
	retentionDays    int
	// Backfill throttle: upserts per second across one backfill run.
	backfillRate rate.Limit
}

func NewWorker(cfg *config.Config, matcher Matcher, leads LeadLister, prof Reconciler, idents Cleaner, log *logger.Logger) (*Worker, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.AsynqQueue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.AsynqConcurrency
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:           server,
		mux:              mux,
		matcher:          matcher,
		leads:            leads,
		prof:             prof,
		idents:           idents,
		log:              log,
		defaultTopN:      cfg.MatchTopN,
		defaultMinShared: cfg.DuplicateMinShared,
		retentionDays:    cfg.IdentifierRetentionDays,
		backfillRate:     rate.Limit(20),
	}

	mux.HandleFunc(TaskMatchLead, w.handleMatchLead)
	mux.HandleFunc(TaskMatchBackfill, w.handleMatchBackfill)
	mux.HandleFunc(TaskReconcileProfiles, w.handleReconcileProfiles)
	mux.HandleFunc(TaskCleanupIdentifiers, w.handleCleanupIdentifiers)

	return w, nil
}

func (w *Worker) handleMatchLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMatchLeadPayload(task)
	if err != nil {
		return err
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}
	topN := payload.TopN
	if topN < 1 {
		topN = w.defaultTopN
	}

	matches, err := w.matcher.MatchLeadToServices(ctx, leadID, topN)
	if err != nil {
		return err
	}
	if w.log != nil {
		w.log.Info("lead matched", "lead_id", leadID, "matches", len(matches))
	}
	return nil
}

// handleMatchBackfill rescoring all open leads. Leads fan out with a
// concurrency bound and a rate limit so a backfill never starves the
// interactive queue. One lead failing does not abort the run.
func (w *Worker) handleMatchBackfill(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMatchBackfillPayload(task)
	if err != nil {
		return err
	}
	topN := payload.TopN
	if topN < 1 {
		topN = w.defaultTopN
	}

	ids, err := w.leads.ListOpenIDs(ctx)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(w.backfillRate, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var failed atomic.Int64
	for _, id := range ids {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			if _, err := w.matcher.MatchLeadToServices(gctx, id, topN); err != nil {
				failed.Add(1)
				if w.log != nil {
					w.log.ScoringError(id.String(), "", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if w.log != nil {
		w.log.Info("match backfill finished", "leads", len(ids), "failed", failed.Load())
	}
	return nil
}

func (w *Worker) handleReconcileProfiles(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReconcileProfilesPayload(task)
	if err != nil {
		return err
	}
	minShared := payload.MinShared
	if minShared < 1 {
		minShared = w.defaultMinShared
	}

	merged, err := w.prof.ReconcileDuplicates(ctx, minShared)
	if err != nil {
		return err
	}
	if w.log != nil {
		w.log.Info("profile reconciliation finished", "merged", merged)
	}
	return nil
}

func (w *Worker) handleCleanupIdentifiers(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCleanupIdentifiersPayload(task)
	if err != nil {
		return err
	}
	days := payload.RetentionDays
	if days < 1 {
		days = w.retentionDays
	}

	_, err = w.idents.CleanupOld(ctx, days)
	return err
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
