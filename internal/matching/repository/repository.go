package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmatch_backend/internal/matching/scoring"
	"leadmatch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchStatus string

const (
	StatusSuggested MatchStatus = "suggested"
	StatusPresented MatchStatus = "presented"
	StatusAccepted  MatchStatus = "accepted"
	StatusRejected  MatchStatus = "rejected"
)

type Match struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	ServiceID       uuid.UUID
	MatchScore      float64
	GeographicScore float64
	IndustryScore   float64
	NeedScore       float64
	ProfileScore    float64
	BehavioralScore float64
	ConfidenceLevel scoring.Confidence
	Priority        scoring.Priority
	Reasons         []string
	Status          MatchStatus
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const matchColumns = `id, lead_id, service_id, match_score, geographic_score, industry_score, need_score, profile_score, behavioral_score, confidence_level, priority, reasons, status, notes, created_at, updated_at`

func scanMatch(row pgx.Row) (Match, error) {
	var m Match
	err := row.Scan(
		&m.ID, &m.LeadID, &m.ServiceID,
		&m.MatchScore, &m.GeographicScore, &m.IndustryScore, &m.NeedScore,
		&m.ProfileScore, &m.BehavioralScore,
		&m.ConfidenceLevel, &m.Priority, &m.Reasons, &m.Status, &m.Notes,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// Upsert writes a scoring result for a (lead, service) pair. Recomputing
// overwrites scores, labels and reasons but preserves an externally set
// status and notes.
func (r *Repository) Upsert(ctx context.Context, leadID, serviceID uuid.UUID, result scoring.Result) (Match, error) {
	reasons := result.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO matches (lead_id, service_id, match_score, geographic_score, industry_score, need_score, profile_score, behavioral_score, confidence_level, priority, reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (lead_id, service_id) DO UPDATE SET
			match_score = EXCLUDED.match_score,
			geographic_score = EXCLUDED.geographic_score,
			industry_score = EXCLUDED.industry_score,
			need_score = EXCLUDED.need_score,
			profile_score = EXCLUDED.profile_score,
			behavioral_score = EXCLUDED.behavioral_score,
			confidence_level = EXCLUDED.confidence_level,
			priority = EXCLUDED.priority,
			reasons = EXCLUDED.reasons,
			updated_at = now()
		RETURNING `+matchColumns,
		leadID, serviceID,
		result.MatchScore, result.GeographicScore, result.IndustryScore,
		result.NeedScore, result.ProfileScore, result.BehavioralScore,
		result.Confidence, result.Priority, reasons,
	)
	return scanMatch(row)
}

func (r *Repository) GetByPair(ctx context.Context, leadID, serviceID uuid.UUID) (Match, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE lead_id = $1 AND service_id = $2`,
		leadID, serviceID)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Match{}, apperr.NotFound("match not found").WithOp("matching.repository.get_by_pair")
	}
	if err != nil {
		return Match{}, err
	}
	return m, nil
}

func (r *Repository) ListForLead(ctx context.Context, leadID uuid.UUID) ([]Match, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE lead_id = $1 ORDER BY match_score DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

// ListForService ranks a service's matches by cached score, then the
// lead's intent and signal strength as tie-breakers.
func (r *Repository) ListForService(ctx context.Context, serviceID uuid.UUID, limit int) ([]Match, error) {
	query := `
		SELECT ` + prefixedMatchColumns("m") + `
		FROM matches m
		JOIN leads l ON l.id = m.lead_id
		WHERE m.service_id = $1
		ORDER BY m.match_score DESC NULLS LAST, l.intent_score DESC, l.signal_strength DESC`
	args := []any{serviceID}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $2`
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status MatchStatus, notes *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE matches SET status = $2, notes = COALESCE($3, notes), updated_at = now() WHERE id = $1`,
		id, status, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("match not found").WithOp("matching.repository.update_status")
	}
	return nil
}

func collectMatches(rows pgx.Rows) ([]Match, error) {
	matches := make([]Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func prefixedMatchColumns(alias string) string {
	cols := ""
	for i, col := range []string{
		"id", "lead_id", "service_id", "match_score", "geographic_score",
		"industry_score", "need_score", "profile_score", "behavioral_score",
		"confidence_level", "priority", "reasons", "status", "notes",
		"created_at", "updated_at",
	} {
		if i > 0 {
			cols += ", "
		}
		cols += fmt.Sprintf("%s.%s", alias, col)
	}
	return cols
}
