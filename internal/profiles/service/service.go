package service

import (
	"context"

	"leadmatch_backend/internal/events"
	identrepo "leadmatch_backend/internal/identifiers/repository"
	"leadmatch_backend/internal/privacy"
	"leadmatch_backend/internal/profiles/repository"
	"leadmatch_backend/platform/apperr"
	"leadmatch_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Profile, error)
	GetByHash(ctx context.Context, profileHash string) (repository.Profile, error)
	CreateWithIdentifiers(ctx context.Context, p repository.CreateParams) (repository.Profile, error)
	ListIdentifiers(ctx context.Context, profileID uuid.UUID) ([]repository.OwnedIdentifier, error)
	ListIdentifiersByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.OwnedIdentifier, error)
	ApplyMerge(ctx context.Context, change repository.MergeChange) error
	FindDuplicatePairs(ctx context.Context, minShared int) ([]repository.DuplicatePair, error)
}

type Service struct {
	repo   Store
	policy privacy.Policy
	bus    events.Bus
	log    *logger.Logger
}

func New(repo Store, policy privacy.Policy, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, policy: policy, bus: bus, log: log}
}

// Build resolves the profile for a set of identifiers, creating it if no
// profile with the same identifier-set digest exists yet. Building twice
// from the same set, in any order, yields the same profile.
func (s *Service) Build(ctx context.Context, identifierIDs []uuid.UUID) (repository.Profile, error) {
	if len(identifierIDs) == 0 {
		return repository.Profile{}, apperr.Validation("at least one identifier is required").WithOp("profiles.service.build")
	}

	hash := ProfileHash(identifierIDs)
	if existing, err := s.repo.GetByHash(ctx, hash); err == nil {
		return existing, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return repository.Profile{}, err
	}

	idents, err := s.repo.ListIdentifiersByIDs(ctx, identifierIDs)
	if err != nil {
		return repository.Profile{}, err
	}
	if len(idents) != len(identifierIDs) {
		return repository.Profile{}, apperr.NotFound("one or more identifiers not found").WithOp("profiles.service.build")
	}

	params := repository.CreateParams{
		ProfileHash:   hash,
		IdentifierIDs: identifierIDs,
	}
	for _, ident := range idents {
		params.SitesVisited = unionSorted(params.SitesVisited, ident.Sites)
		if ident.RawValue == nil {
			continue
		}
		switch ident.Type {
		case string(identrepo.TypeEmail):
			if params.Email == nil {
				params.Email = ident.RawValue
			}
		case string(identrepo.TypePhone):
			if params.Phone == nil {
				params.Phone = ident.RawValue
			}
		case string(identrepo.TypeFingerprint):
			if params.DeviceFingerprint == nil && s.policy.AllowFingerprints() {
				params.DeviceFingerprint = ident.RawValue
			}
		}
	}
	if !s.policy.AllowCrossSiteCorrelation() && len(params.SitesVisited) > 1 {
		params.SitesVisited = nil
	}

	profile, err := s.repo.CreateWithIdentifiers(ctx, params)
	if err != nil {
		return repository.Profile{}, err
	}
	return profile, nil
}

// Merge folds source into target. The target's contact fields win, arrays
// union, behavior counts sum, and the survivor's hash is recomputed from
// the combined identifier set. All writes land in one transaction.
func (s *Service) Merge(ctx context.Context, sourceID, targetID uuid.UUID) (repository.Profile, error) {
	if sourceID == targetID {
		return repository.Profile{}, apperr.Conflict("cannot merge a profile into itself").WithOp("profiles.service.merge")
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return repository.Profile{}, err
	}
	source, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		return repository.Profile{}, err
	}

	change := mergeProfiles(target, source)
	if !s.policy.AllowFingerprints() {
		change.DeviceFingerprint = nil
	}

	targetIdents, err := s.repo.ListIdentifiers(ctx, targetID)
	if err != nil {
		return repository.Profile{}, err
	}
	sourceIdents, err := s.repo.ListIdentifiers(ctx, sourceID)
	if err != nil {
		return repository.Profile{}, err
	}
	combined := make([]uuid.UUID, 0, len(targetIdents)+len(sourceIdents))
	for _, ident := range targetIdents {
		combined = append(combined, ident.ID)
	}
	for _, ident := range sourceIdents {
		combined = append(combined, ident.ID)
	}
	change.ProfileHash = ProfileHash(combined)

	if err := s.repo.ApplyMerge(ctx, change); err != nil {
		return repository.Profile{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ProfileMerged{
			BaseEvent:  events.NewBaseEvent(),
			SourceID:   sourceID,
			SurvivorID: targetID,
		})
	}

	return s.repo.GetByID(ctx, targetID)
}

// FindDuplicates lists profile pairs sharing at least minShared identical
// identifier hashes.
func (s *Service) FindDuplicates(ctx context.Context, minShared int) ([]repository.DuplicatePair, error) {
	if minShared < 1 {
		return nil, apperr.Validation("minimum shared identifiers must be at least 1").WithOp("profiles.service.find_duplicates")
	}
	return s.repo.FindDuplicatePairs(ctx, minShared)
}

// ReconcileDuplicates merges every detected duplicate pair, later-created
// profile into earlier-created. A pair that fails or has already been
// absorbed by a previous merge is skipped.
func (s *Service) ReconcileDuplicates(ctx context.Context, minShared int) (int, error) {
	pairs, err := s.FindDuplicates(ctx, minShared)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, pair := range pairs {
		if _, err := s.Merge(ctx, pair.ProfileB, pair.ProfileA); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				continue
			}
			if s.log != nil {
				s.log.Error("duplicate merge failed",
					"source_id", pair.ProfileB,
					"target_id", pair.ProfileA,
					"error", err,
				)
			}
			continue
		}
		merged++
	}
	return merged, nil
}
