package service

import (
	"context"
	"time"

	"leadmatch_backend/internal/events"
	"leadmatch_backend/internal/geo"
	identrepo "leadmatch_backend/internal/identifiers/repository"
	identsvc "leadmatch_backend/internal/identifiers/service"
	"leadmatch_backend/internal/leads/repository"
	"leadmatch_backend/internal/signals"
	"leadmatch_backend/platform/apperr"
	"leadmatch_backend/platform/logger"
	"leadmatch_backend/platform/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence surface the lead builder needs.
type Store interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	UpdateSignals(ctx context.Context, id uuid.UUID, detected []signals.Signal, strength, intent float64, needs []string) (repository.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status repository.LeadStatus) error
	LinkProfile(ctx context.Context, id, profileID uuid.UUID) error
	List(ctx context.Context, f repository.Filters) ([]repository.Lead, error)
	ListOpenIDs(ctx context.Context) ([]uuid.UUID, error)
}

// IdentifierExtractor routes raw observations into the identifier store.
type IdentifierExtractor interface {
	Extract(ctx context.Context, obs identsvc.Observation) []identrepo.Identifier
}

// DiscoverCriteria scopes a discovery batch.
type DiscoverCriteria struct {
	Source   string `validate:"required"`
	Industry string
	LeadType repository.LeadType
}

/// Observation is one raw payload from a signal source: page text plus any
// structured data the source detected.
type Observation struct {
	Name        string
	Email       string
	Phone       string
	Location    string
	Industry    string
	CompanySize string
	Site        string
	Text        string
	Behavior    string
	Cookies     map[string]string
	Fields      map[string]string
}

type Config struct {
	DefaultCountry    string
	EnrichmentTimeout time.Duration
	FanOutLimit       int
}

type Service struct {
	repo      Store
	extractor IdentifierExtractor
	bus       events.Bus
	log       *logger.Logger
	validate  *validator.Validator
	cfg       Config
}

func New(repo Store, extractor IdentifierExtractor, bus events.Bus, log *logger.Logger, validate *validator.Validator, cfg Config) *Service {
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 10 * time.Second
	}
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = 8
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "USA"
	}
	return &Service{repo: repo, extractor: extractor, bus: bus, log: log, validate: validate, cfg: cfg}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f repository.Filters) ([]repository.Lead, error) {
	return s.repo.List(ctx, f)
}

// ApplySignals runs the detector over new text and behavioral evidence,
// appends the results to the lead's signal log and recomputes its derived
// metrics. Raw text also feeds the identifier extractor so contact traces
// end up in the identifier store.
func (s *Service) ApplySignals(ctx context.Context, leadID uuid.UUID, text, behavior string) (repository.Lead, error) {
	return s.applySignals(ctx, leadID, text, behavior, true)
}

func (s *Service) applySignals(ctx context.Context, leadID uuid.UUID, text, behavior string, extract bool) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}
	if lead.Status.Terminal() {
		return repository.Lead{}, apperr.Conflict("lead is in a terminal status").WithOp("leads.service.apply_signals")
	}

	detected := lead.SignalsDetected
	detected = append(detected, signals.DetectFromText(text, lead.Source)...)
	detected = append(detected, signals.DetectFromBehavior(behavior, lead.Source)...)

	strength := signals.AggregateStrength(detected)
	intent := signals.IntentScore(detected)
	needs := signals.NeedsIdentified(detected)

	updated, err := s.repo.UpdateSignals(ctx, leadID, detected, strength, intent, needs)
	if err != nil {
		return repository.Lead{}, err
	}

	if extract && s.extractor != nil && text != "" {
		s.extractor.Extract(ctx, identsvc.Observation{Site: lead.Source, Text: text})
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadScored{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         updated.ID,
			SignalStrength: updated.SignalStrength,
			IntentScore:    updated.IntentScore,
			SignalCount:    len(updated.SignalsDetected),
		})
	}
	return updated, nil
}

// Discover creates and enriches one lead per observation payload. Payloads
// fan out concurrently with a bound; one payload failing or timing out is
// logged and skipped, the batch continues.
func (s *Service) Discover(ctx context.Context, criteria DiscoverCriteria, payloads []Observation) ([]repository.Lead, error) {
	if s.validate != nil {
		if err := s.validate.Struct(criteria); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "invalid discovery criteria", err).WithOp("leads.service.discover")
		}
	}

	results := make([]*repository.Lead, len(payloads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FanOutLimit)

	for i, payload := range payloads {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, s.cfg.EnrichmentTimeout)
			defer cancel()

			lead, err := s.discoverOne(itemCtx, criteria, payload)
			if err != nil {
				if s.log != nil {
					s.log.Warn("discovery payload skipped", "source", criteria.Source, "index", i, "error", err.Error())
				}
				return nil
			}
			results[i] = &lead
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	leads := make([]repository.Lead, 0, len(payloads))
	for _, lead := range results {
		if lead != nil {
			leads = append(leads, *lead)
		}
	}
	return leads, nil
}

func (s *Service) discoverOne(ctx context.Context, criteria DiscoverCriteria, payload Observation) (repository.Lead, error) {
	params := repository.CreateParams{
		Type:   criteria.LeadType,
		Source: criteria.Source,
	}
	if payload.Name != "" {
		params.Name = &payload.Name
	}
	if payload.Email != "" {
		params.Email = &payload.Email
	}
	if payload.Phone != "" {
		params.Phone = &payload.Phone
	}
	industry := payload.Industry
	if industry == "" {
		industry = criteria.Industry
	}
	if industry != "" {
		params.Industry = &industry
	}
	if payload.CompanySize != "" {
		params.CompanySize = &payload.CompanySize
	}

	if payload.Location != "" {
		loc, err := geo.ParseLocation(payload.Location, s.cfg.DefaultCountry)
		if err != nil {
			if s.log != nil {
				s.log.Debug("unparseable location on discovery payload", "location", payload.Location)
			}
		} else {
			params.City = loc.City
			params.State = loc.State
			params.Country = loc.Country
			params.PostalCode = loc.PostalCode
		}
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return repository.Lead{}, err
	}

	if s.extractor != nil {
		s.extractor.Extract(ctx, identsvc.Observation{
			Site:    payload.Site,
			Text:    payload.Text,
			Cookies: payload.Cookies,
			Fields:  payload.Fields,
		})
	}

	if payload.Text != "" || payload.Behavior != "" {
		// Identifier extraction already covered the payload text above.
		enriched, err := s.applySignals(ctx, lead.ID, payload.Text, payload.Behavior, false)
		if err != nil {
			return repository.Lead{}, err
		}
		return enriched, nil
	}
	return lead, nil
}
