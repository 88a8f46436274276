package main

import (
	"context"
	"time"

	catalogrepo "leadmatch_backend/internal/catalog/repository"
	"leadmatch_backend/internal/config"
	"leadmatch_backend/internal/events"
	leadrepo "leadmatch_backend/internal/leads/repository"
	matchrepo "leadmatch_backend/internal/matching/repository"
	matchsvc "leadmatch_backend/internal/matching/service"
	"leadmatch_backend/platform/db"
	"leadmatch_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead match backfill", "top_n", cfg.MatchTopN)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	leads := leadrepo.New(pool)
	matcher := matchsvc.New(matchrepo.New(pool), leads, catalogrepo.New(pool), eventBus, log)

	const delayBetweenLeads = 100 * time.Millisecond

	ids, err := leads.ListOpenIDs(ctx)
	if err != nil {
		log.Error("failed to list open leads", "error", err)
		panic("failed to list open leads: " + err.Error())
	}

	var processed int
	var succeeded int

	for _, id := range ids {
		processed++

		matchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		matches, err := matcher.MatchLeadToServices(matchCtx, id, cfg.MatchTopN)
		cancel()
		if err != nil {
			log.Error("failed to recompute matches", "leadId", id, "error", err)
			continue
		}

		succeeded++
		log.Info("matches recomputed", "leadId", id, "matches", len(matches))
		time.Sleep(delayBetweenLeads)
	}

	eventBus.Wait()
	log.Info("lead match backfill completed", "processed", processed, "updated", succeeded)
}
