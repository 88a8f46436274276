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

// Profile is a merged entity built from correlated identifiers.
type Profile struct {
	ID                uuid.UUID
	ProfileHash       string
	Email             *string
	Phone             *string
	Name              *string
	Company           *string
	SitesVisited      []string
	IPAddresses       []string
	DeviceFingerprint *string
	BehaviorCounts    map[string]int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OwnedIdentifier is the slice of identifier data the resolver needs:
// enough to fill contact fields and compare hashes, nothing more.
type OwnedIdentifier struct {
	ID       uuid.UUID
	Type     string
	Hash     string
	RawValue *string
	Sites    []string
}

// DuplicatePair is a pair of profiles sharing identical identifier hashes.
// A is always the earlier-created profile.
type DuplicatePair struct {
	ProfileA    uuid.UUID
	ProfileB    uuid.UUID
	SharedCount int
}

// CreateParams creates a profile and claims its identifiers in one
// transaction. Only identifiers not already owned are claimed.
type CreateParams struct {
	ProfileHash       string
	IdentifierIDs     []uuid.UUID
	Email             *string
	Phone             *string
	Name              *string
	Company           *string
	SitesVisited      []string
	IPAddresses       []string
	DeviceFingerprint *string
	BehaviorCounts    map[string]int
}

// MergeChange is the full set of writes a profile merge performs. ApplyMerge
// executes it atomically: partial application would leave identifiers
// pointing at a deleted profile.
type MergeChange struct {
	SurvivorID        uuid.UUID
	RemovedID         uuid.UUID
	ProfileHash       string
	Email             *string
	Phone             *string
	Name              *string
	Company           *string
	SitesVisited      []string
	IPAddresses       []string
	DeviceFingerprint *string
	BehaviorCounts    map[string]int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id, profile_hash, email, phone, name, company, sites_visited, ip_addresses, device_fingerprint, behavior_counts, created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.ProfileHash, &p.Email, &p.Phone, &p.Name, &p.Company,
		&p.SitesVisited, &p.IPAddresses, &p.DeviceFingerprint, &p.BehaviorCounts,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, apperr.NotFound("profile not found").WithOp("profiles.repository.get")
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// GetByHash resolves a profile by its identifier-set digest.
func (r *Repository) GetByHash(ctx context.Context, profileHash string) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE profile_hash = $1`, profileHash)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, apperr.NotFound("profile not found").WithOp("profiles.repository.get_by_hash")
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// CreateWithIdentifiers inserts the profile and claims the identifiers in
// one transaction. ON CONFLICT on profile_hash keeps concurrent builds of
// the same identifier set idempotent: the loser of the race resolves to
// the winner's row.
func (r *Repository) CreateWithIdentifiers(ctx context.Context, p CreateParams) (Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer tx.Rollback(ctx)

	behaviorCounts := p.BehaviorCounts
	if behaviorCounts == nil {
		behaviorCounts = map[string]int{}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO profiles (profile_hash, email, phone, name, company, sites_visited, ip_addresses, device_fingerprint, behavior_counts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (profile_hash) DO UPDATE SET updated_at = now()
		RETURNING `+profileColumns,
		p.ProfileHash, p.Email, p.Phone, p.Name, p.Company,
		emptyIfNil(p.SitesVisited), emptyIfNil(p.IPAddresses), p.DeviceFingerprint, behaviorCounts,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return Profile{}, err
	}

	// Ownership is exclusive: never steal identifiers from another profile.
	if _, err := tx.Exec(ctx,
		`UPDATE identifiers SET profile_id = $1 WHERE id = ANY($2) AND profile_id IS NULL`,
		profile.ID, p.IdentifierIDs,
	); err != nil {
		return Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// ListIdentifiers returns the identifiers owned by the profile.
func (r *Repository) ListIdentifiers(ctx context.Context, profileID uuid.UUID) ([]OwnedIdentifier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identifier_type, identifier_hash, raw_value, sites_seen_on
		FROM identifiers WHERE profile_id = $1 ORDER BY first_seen
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]OwnedIdentifier, 0)
	for rows.Next() {
		var ident OwnedIdentifier
		if err := rows.Scan(&ident.ID, &ident.Type, &ident.Hash, &ident.RawValue, &ident.Sites); err != nil {
			return nil, err
		}
		items = append(items, ident)
	}
	return items, rows.Err()
}

// ListIdentifiersByIDs returns the identifiers matching the given ids,
// owned or not.
func (r *Repository) ListIdentifiersByIDs(ctx context.Context, ids []uuid.UUID) ([]OwnedIdentifier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identifier_type, identifier_hash, raw_value, sites_seen_on
		FROM identifiers WHERE id = ANY($1) ORDER BY first_seen
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]OwnedIdentifier, 0, len(ids))
	for rows.Next() {
		var ident OwnedIdentifier
		if err := rows.Scan(&ident.ID, &ident.Type, &ident.Hash, &ident.RawValue, &ident.Sites); err != nil {
			return nil, err
		}
		items = append(items, ident)
	}
	return items, rows.Err()
}

// ApplyMerge executes a precomputed merge as a single transaction:
// reassign every identifier of the removed profile, rewrite the survivor,
// repoint leads, delete the removed profile.
func (r *Repository) ApplyMerge(ctx context.Context, change MergeChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE identifiers SET profile_id = $1 WHERE profile_id = $2`,
		change.SurvivorID, change.RemovedID,
	); err != nil {
		return err
	}

	behaviorCounts := change.BehaviorCounts
	if behaviorCounts == nil {
		behaviorCounts = map[string]int{}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET
			profile_hash = $2, email = $3, phone = $4, name = $5, company = $6,
			sites_visited = $7, ip_addresses = $8, device_fingerprint = $9,
			behavior_counts = $10, updated_at = now()
		WHERE id = $1
	`,
		change.SurvivorID, change.ProfileHash, change.Email, change.Phone, change.Name, change.Company,
		emptyIfNil(change.SitesVisited), emptyIfNil(change.IPAddresses), change.DeviceFingerprint, behaviorCounts,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("survivor profile not found").WithOp("profiles.repository.apply_merge")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE leads SET profile_id = $1 WHERE profile_id = $2`,
		change.SurvivorID, change.RemovedID,
	); err != nil {
		return err
	}

	tag, err = tx.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, change.RemovedID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("source profile not found").WithOp("profiles.repository.apply_merge")
	}

	return tx.Commit(ctx)
}

// FindDuplicatePairs returns profile pairs sharing at least minShared
// identical identifier hashes, most-shared first. The earlier-created
// profile is always reported as A.
func (r *Repository) FindDuplicatePairs(ctx context.Context, minShared int) ([]DuplicatePair, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pa.id, pb.id, COUNT(DISTINCT ia.identifier_hash) AS shared
		FROM identifiers ia
		JOIN identifiers ib ON ia.identifier_hash = ib.identifier_hash AND ia.id <> ib.id
		JOIN profiles pa ON pa.id = ia.profile_id
		JOIN profiles pb ON pb.id = ib.profile_id
		WHERE pa.id <> pb.id
		  AND (pa.created_at < pb.created_at OR (pa.created_at = pb.created_at AND pa.id < pb.id))
		GROUP BY pa.id, pb.id
		HAVING COUNT(DISTINCT ia.identifier_hash) >= $1
		ORDER BY shared DESC
	`, minShared)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := make([]DuplicatePair, 0)
	for rows.Next() {
		var pair DuplicatePair
		if err := rows.Scan(&pair.ProfileA, &pair.ProfileB, &pair.SharedCount); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
