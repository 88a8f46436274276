// Package service implements the identifier store operations: tracking raw
// observations, extracting identifiers from page text and structured
// payloads, and the privacy operations (anonymize, delete, retention sweep).
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"leadmatch_backend/internal/events"
	"leadmatch_backend/internal/identifiers/repository"
	"leadmatch_backend/internal/privacy"
	"leadmatch_backend/platform/apperr"
	"leadmatch_backend/platform/logger"
	"leadmatch_backend/platform/phone"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Upsert(ctx context.Context, p repository.UpsertParams) (repository.Identifier, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Identifier, error)
	Anonymize(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteUnlinkedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type Service struct {
	repo        Store
	policy      privacy.Policy
	bus         events.Bus
	log         *logger.Logger
	phoneRegion string
}

func New(repo Store, policy privacy.Policy, bus events.Bus, log *logger.Logger, phoneRegion string) *Service {
	if phoneRegion == "" {
		phoneRegion = "US"
	}
	return &Service{repo: repo, policy: policy, bus: bus, log: log, phoneRegion: phoneRegion}
}

// TrackParams is one raw identifier observation.
type TrackParams struct {
	Type     repository.IdentifierType
	RawValue string
	Site     string
	Metadata map[string]any
}

// Track hashes the raw value and upserts the observation. The returned
// identifier is nil (with a nil error) when the privacy policy says this
// identifier type must not be tracked.
func (s *Service) Track(ctx context.Context, p TrackParams) (*repository.Identifier, error) {
	if !p.Type.Valid() {
		return nil, apperr.Validation("unknown identifier type: " + string(p.Type))
	}
	normalized := s.normalize(p.Type, p.RawValue)
	if normalized == "" {
		return nil, apperr.Validation("identifier raw value is empty")
	}

	if p.Type == repository.TypeFingerprint && !s.policy.AllowFingerprints() {
		if s.log != nil {
			s.log.Debug("fingerprint tracking skipped by privacy policy")
		}
		return nil, nil
	}

	var rawValue *string
	if s.policy.AllowRawValue(string(p.Type)) {
		rawValue = &normalized
	}

	ident, err := s.repo.Upsert(ctx, repository.UpsertParams{
		Type:     p.Type,
		Hash:     Digest(normalized),
		RawValue: rawValue,
		Site:     p.Site,
		Metadata: p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.IdentifierTracked{
			BaseEvent:    events.NewBaseEvent(),
			IdentifierID: ident.ID,
			Type:         string(ident.Type),
			SeenCount:    ident.SeenCount,
		})
	}

	return &ident, nil
}

// normalize canonicalizes the raw value so the same real-world identifier
// always hashes the same: emails lowercase, phones E.164.
func (s *Service) normalize(t repository.IdentifierType, raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch t {
	case repository.TypeEmail:
		return strings.ToLower(trimmed)
	case repository.TypePhone:
		return phone.NormalizeE164Region(trimmed, s.phoneRegion)
	default:
		return trimmed
	}
}

// Digest is the stable hash used as the identity key for raw values.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Anonymize replaces the raw value with a sentinel but keeps the hash so
// correlation keeps working.
func (s *Service) Anonymize(ctx context.Context, id uuid.UUID) error {
	return s.repo.Anonymize(ctx, id)
}

// Delete removes the identifier entirely, breaking correlation.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// CleanupOld deletes unlinked identifiers whose last observation is older
// than the retention window. Best-effort: the count is reported either way.
func (s *Service) CleanupOld(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, apperr.Validation("retention days must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	deleted, err := s.repo.DeleteUnlinkedOlderThan(ctx, cutoff)
	if s.log != nil {
		s.log.RetentionSweep("identifiers", deleted, err)
	}
	return deleted, err
}
