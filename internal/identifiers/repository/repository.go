package repository

import (
	"context"
	"errors"
	"time"

	"leadmatch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentifierType enumerates the kinds of raw observed identifiers.
type IdentifierType string

const (
	TypeCookie      IdentifierType = "cookie"
	TypeEmail       IdentifierType = "email"
	TypePhone       IdentifierType = "phone"
	TypeUserID      IdentifierType = "user_id"
	TypeTrackingID  IdentifierType = "tracking_id"
	TypeFingerprint IdentifierType = "fingerprint"
)

// Valid reports whether t is a known identifier type.
func (t IdentifierType) Valid() bool {
	switch t {
	case TypeCookie, TypeEmail, TypePhone, TypeUserID, TypeTrackingID, TypeFingerprint:
		return true
	}
	return false
}

// Identifier is one observed tracking value. The (type, hash) pair is its
// sole equality key; the raw value may be absent or anonymized.
type Identifier struct {
	ID          uuid.UUID
	Type        IdentifierType
	Hash        string
	RawValue    *string
	SitesSeenOn []string
	SeenCount   int
	Metadata    map[string]any
	ProfileID   *uuid.UUID
	FirstSeen   time.Time
	LastSeen    time.Time
}

// UpsertParams carries one observation of an identifier.
type UpsertParams struct {
	Type     IdentifierType
	Hash     string
	RawValue *string
	Site     string
	Metadata map[string]any
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const identifierColumns = `id, identifier_type, identifier_hash, raw_value, sites_seen_on, seen_count, metadata, profile_id, first_seen, last_seen`

func scanIdentifier(row pgx.Row) (Identifier, error) {
	var ident Identifier
	err := row.Scan(
		&ident.ID, &ident.Type, &ident.Hash, &ident.RawValue, &ident.SitesSeenOn,
		&ident.SeenCount, &ident.Metadata, &ident.ProfileID, &ident.FirstSeen, &ident.LastSeen,
	)
	return ident, err
}

// Upsert records an observation. A repeat observation of the same
// (type, hash) increments seen_count, refreshes last_seen, and unions the
// site into sites_seen_on; it never creates a second row.
func (r *Repository) Upsert(ctx context.Context, p UpsertParams) (Identifier, error) {
	sites := []string{}
	if p.Site != "" {
		sites = append(sites, p.Site)
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO identifiers (identifier_type, identifier_hash, raw_value, sites_seen_on, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier_type, identifier_hash) DO UPDATE SET
			seen_count = identifiers.seen_count + 1,
			last_seen = now(),
			raw_value = COALESCE(identifiers.raw_value, EXCLUDED.raw_value),
			sites_seen_on = (
				SELECT ARRAY(SELECT DISTINCT s FROM unnest(identifiers.sites_seen_on || EXCLUDED.sites_seen_on) AS s ORDER BY s)
			)
		RETURNING `+identifierColumns,
		p.Type, p.Hash, p.RawValue, sites, metadata,
	)

	ident, err := scanIdentifier(row)
	if err != nil {
		return Identifier{}, apperr.Wrap(apperr.KindInternal, "upsert identifier failed", err).WithOp("identifiers.repository.upsert")
	}
	return ident, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Identifier, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identifierColumns+` FROM identifiers WHERE id = $1`, id)
	ident, err := scanIdentifier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identifier{}, apperr.NotFound("identifier not found").WithOp("identifiers.repository.get")
	}
	if err != nil {
		return Identifier{}, err
	}
	return ident, nil
}

func (r *Repository) GetByTypeHash(ctx context.Context, identType IdentifierType, hash string) (Identifier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+identifierColumns+` FROM identifiers WHERE identifier_type = $1 AND identifier_hash = $2`,
		identType, hash,
	)
	ident, err := scanIdentifier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identifier{}, apperr.NotFound("identifier not found").WithOp("identifiers.repository.get_by_hash")
	}
	if err != nil {
		return Identifier{}, err
	}
	return ident, nil
}

// ListByIDs returns identifiers for the given ids, in no particular order.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Identifier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identifierColumns+` FROM identifiers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Identifier, 0, len(ids))
	for rows.Next() {
		ident, err := scanIdentifier(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ident)
	}
	return items, rows.Err()
}

// ListByProfile returns the identifiers currently owned by a profile.
func (r *Repository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]Identifier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+identifierColumns+` FROM identifiers WHERE profile_id = $1 ORDER BY first_seen`,
		profileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Identifier, 0)
	for rows.Next() {
		ident, err := scanIdentifier(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ident)
	}
	return items, rows.Err()
}

// anonymizedSentinel replaces the raw value while keeping the hash, so
// correlation keeps working after anonymization.
const anonymizedSentinel = "[redacted]"

func (r *Repository) Anonymize(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identifiers SET raw_value = $2 WHERE id = $1`,
		id, anonymizedSentinel,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("identifier not found").WithOp("identifiers.repository.anonymize")
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identifiers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("identifier not found").WithOp("identifiers.repository.delete")
	}
	return nil
}

// DeleteUnlinkedOlderThan removes identifiers not owned by any profile
// whose last observation predates the cutoff. Linked identifiers are kept
// regardless of age.
func (r *Repository) DeleteUnlinkedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM identifiers WHERE profile_id IS NULL AND last_seen < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
