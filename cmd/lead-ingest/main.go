package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"leadmatch_backend/internal/config"
	"leadmatch_backend/internal/events"
	identrepo "leadmatch_backend/internal/identifiers/repository"
	identsvc "leadmatch_backend/internal/identifiers/service"
	leadrepo "leadmatch_backend/internal/leads/repository"
	leadsvc "leadmatch_backend/internal/leads/service"
	"leadmatch_backend/internal/privacy"
	"leadmatch_backend/internal/scheduler"
	"leadmatch_backend/platform/db"
	"leadmatch_backend/platform/logger"
	"leadmatch_backend/platform/validator"
)

// ingestFile is the on-disk shape consumed by the CLI: discovery criteria
// plus the raw payloads captured from a signal source.
type ingestFile struct {
	Source   string              `json:"source"`
	Industry string              `json:"industry"`
	LeadType string              `json:"lead_type"`
	Payloads []ingestObservation `json:"payloads"`
}

type ingestObservation struct {
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	Location    string            `json:"location"`
	Industry    string            `json:"industry"`
	CompanySize string            `json:"company_size"`
	Site        string            `json:"site"`
	Text        string            `json:"text"`
	Behavior    string            `json:"behavior"`
	Cookies     map[string]string `json:"cookies"`
	Fields      map[string]string `json:"fields"`
}

func main() {
	inputPath := flag.String("input", "", "path to a JSON file of discovery payloads")
	flag.Parse()

	if *inputPath == "" {
		panic("missing required -input flag")
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead ingest", "input", *inputPath)

	raw, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Error("failed to read input file", "error", err)
		panic("failed to read input file: " + err.Error())
	}

	var input ingestFile
	if err := json.Unmarshal(raw, &input); err != nil {
		log.Error("failed to parse input file", "error", err)
		panic("failed to parse input file: " + err.Error())
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	policy := privacy.NewPolicy(cfg.PrivacyMode)
	identifiers := identsvc.New(identrepo.New(pool), policy, eventBus, log, cfg.PhoneRegion)
	leads := leadsvc.New(leadrepo.New(pool), identifiers, eventBus, log, validator.New(), leadsvc.Config{
		DefaultCountry:    cfg.DefaultCountry,
		EnrichmentTimeout: cfg.EnrichmentTimeout,
	})

	criteria := leadsvc.DiscoverCriteria{
		Source:   input.Source,
		Industry: input.Industry,
		LeadType: leadrepo.LeadType(input.LeadType),
	}

	payloads := make([]leadsvc.Observation, 0, len(input.Payloads))
	for _, p := range input.Payloads {
		payloads = append(payloads, leadsvc.Observation{
			Name:        p.Name,
			Email:       p.Email,
			Phone:       p.Phone,
			Location:    p.Location,
			Industry:    p.Industry,
			CompanySize: p.CompanySize,
			Site:        p.Site,
			Text:        p.Text,
			Behavior:    p.Behavior,
			Cookies:     p.Cookies,
			Fields:      p.Fields,
		})
	}

	created, err := leads.Discover(ctx, criteria, payloads)
	if err != nil {
		log.Error("lead discovery failed", "error", err)
		panic("lead discovery failed: " + err.Error())
	}

	if cfg.RedisURL != "" {
		queue, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task client", "error", err)
			panic("failed to initialize task client: " + err.Error())
		}
		defer func() { _ = queue.Close() }()

		for _, lead := range created {
			payload := scheduler.MatchLeadPayload{LeadID: lead.ID.String(), TopN: cfg.MatchTopN}
			if err := queue.EnqueueMatchLead(ctx, payload); err != nil {
				log.Warn("failed to enqueue match task", "leadId", lead.ID, "error", err)
			}
		}
	}

	eventBus.Wait()
	log.Info("lead ingest completed", "payloads", len(payloads), "created", len(created))
}
