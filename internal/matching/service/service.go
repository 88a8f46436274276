package service

import (
	"context"
	"sort"

	catalogrepo "leadmatch_backend/internal/catalog/repository"
	"leadmatch_backend/internal/events"
	leadrepo "leadmatch_backend/internal/leads/repository"
	"leadmatch_backend/internal/matching/repository"
	"leadmatch_backend/internal/matching/scoring"
	"leadmatch_backend/platform/apperr"
	"leadmatch_backend/platform/logger"

	"github.com/google/uuid"
)

// MatchStore is the match persistence surface.
type MatchStore interface {
	Upsert(ctx context.Context, leadID, serviceID uuid.UUID, result scoring.Result) (repository.Match, error)
	GetByPair(ctx context.Context, leadID, serviceID uuid.UUID) (repository.Match, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]repository.Match, error)
	ListForService(ctx context.Context, serviceID uuid.UUID, limit int) ([]repository.Match, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status repository.MatchStatus, notes *string) error
}

// LeadSource supplies leads to score.
type LeadSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadrepo.Lead, error)
	List(ctx context.Context, f leadrepo.Filters) ([]leadrepo.Lead, error)
}

// CatalogSource supplies active service offerings.
type CatalogSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (catalogrepo.ServiceOffering, error)
	ListActive(ctx context.Context) ([]catalogrepo.ServiceOffering, error)
}

// RankedLead pairs a cached match with its lead for the inverse query.
type RankedLead struct {
	Match repository.Match
	Lead  leadrepo.Lead
}

type Service struct {
	matches MatchStore
	leads   LeadSource
	catalog CatalogSource
	bus     events.Bus
	log     *logger.Logger
}

func New(matches MatchStore, leads LeadSource, catalog CatalogSource, bus events.Bus, log *logger.Logger) *Service {
	return &Service{matches: matches, leads: leads, catalog: catalog, bus: bus, log: log}
}

// MatchLeadToServices scores the lead against every active service and
// persists the top N as idempotent upserts. A persistence failure on one
// pair is logged and the pair skipped; the rest of the batch continues.
func (s *Service) MatchLeadToServices(ctx context.Context, leadID uuid.UUID, topN int) ([]repository.Match, error) {
	if topN < 1 {
		return nil, apperr.Validation("top N must be at least 1").WithOp("matching.service.match_lead")
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status.Terminal() {
		return nil, apperr.Conflict("lead is in a terminal status").WithOp("matching.service.match_lead")
	}

	services, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		service catalogrepo.ServiceOffering
		result  scoring.Result
	}
	candidates := make([]scored, 0, len(services))
	for _, svc := range services {
		candidates = append(candidates, scored{service: svc, result: scoring.Score(lead, svc)})
	}
	// Name as tie-breaker keeps repeated runs deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].result.MatchScore != candidates[j].result.MatchScore {
			return candidates[i].result.MatchScore > candidates[j].result.MatchScore
		}
		return candidates[i].service.Name < candidates[j].service.Name
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	persisted := make([]repository.Match, 0, len(candidates))
	for _, c := range candidates {
		match, err := s.matches.Upsert(ctx, leadID, c.service.ID, c.result)
		if err != nil {
			if s.log != nil {
				s.log.ScoringError(leadID.String(), c.service.ID.String(), err)
			}
			continue
		}
		persisted = append(persisted, match)

		if s.bus != nil {
			s.bus.Publish(ctx, events.MatchFound{
				BaseEvent:   events.NewBaseEvent(),
				MatchID:     match.ID,
				LeadID:      leadID,
				ServiceID:   c.service.ID,
				ServiceName: c.service.Name,
				MatchScore:  match.MatchScore,
				IntentScore: lead.IntentScore,
				Priority:    string(match.Priority),
			})
		}
	}
	return persisted, nil
}

// RankLeads ranks eligible leads for one service by cached match score,
// lazily computing and caching any pair that has not been scored yet.
func (s *Service) RankLeads(ctx context.Context, serviceID uuid.UUID, filters leadrepo.Filters, limit int) ([]RankedLead, error) {
	service, err := s.catalog.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	leads, err := s.leads.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedLead, 0, len(leads))
	for _, lead := range leads {
		if lead.Status.Terminal() {
			continue
		}
		match, err := s.matches.GetByPair(ctx, lead.ID, serviceID)
		if apperr.Is(err, apperr.KindNotFound) {
			match, err = s.matches.Upsert(ctx, lead.ID, serviceID, scoring.Score(lead, service))
		}
		if err != nil {
			if s.log != nil {
				s.log.ScoringError(lead.ID.String(), serviceID.String(), err)
			}
			continue
		}
		ranked = append(ranked, RankedLead{Match: match, Lead: lead})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Match.MatchScore != ranked[j].Match.MatchScore {
			return ranked[i].Match.MatchScore > ranked[j].Match.MatchScore
		}
		if ranked[i].Lead.IntentScore != ranked[j].Lead.IntentScore {
			return ranked[i].Lead.IntentScore > ranked[j].Lead.IntentScore
		}
		return ranked[i].Lead.SignalStrength > ranked[j].Lead.SignalStrength
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ListForService exposes the cached ranking without recomputation.
func (s *Service) ListForService(ctx context.Context, serviceID uuid.UUID, limit int) ([]repository.Match, error) {
	return s.matches.ListForService(ctx, serviceID, limit)
}

// SetStatus records an external decision on a match. Recomputation will
// not overwrite it.
func (s *Service) SetStatus(ctx context.Context, matchID uuid.UUID, status repository.MatchStatus, notes *string) error {
	return s.matches.UpdateStatus(ctx, matchID, status, notes)
}
