package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmatch_backend/internal/signals"
	"leadmatch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadType string

const (
	TypeConsumer LeadType = "consumer"
	TypeBusiness LeadType = "business"
)

type LeadStatus string

const (
	StatusNew        LeadStatus = "new"
	StatusContacted  LeadStatus = "contacted"
	StatusInterested LeadStatus = "interested"
	StatusConverted  LeadStatus = "converted"
	StatusLost       LeadStatus = "lost"
	StatusInvalid    LeadStatus = "invalid"
)

// Terminal reports whether the status excludes the lead from further
// enrichment and matching.
func (s LeadStatus) Terminal() bool {
	return s == StatusLost || s == StatusInvalid
}

type Lead struct {
	ID              uuid.UUID
	Type            LeadType
	Name            *string
	Email           *string
	Phone           *string
	City            string
	State           string
	Country         string
	PostalCode      string
	Industry        *string
	CompanySize     *string
	Source          string
	SignalsDetected []signals.Signal
	SignalStrength  float64
	IntentScore     float64
	NeedsIdentified []string
	Status          LeadStatus
	ProfileID       *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateParams struct {
	Type        LeadType
	Name        *string
	Email       *string
	Phone       *string
	City        string
	State       string
	Country     string
	PostalCode  string
	Industry    *string
	CompanySize *string
	Source      string
}

// Filters narrows List. Zero values mean "no filter".
type Filters struct {
	Status    LeadStatus
	Industry  string
	State     string
	MinIntent float64
	Limit     int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, lead_type, name, email, phone, city, state, country, postal_code, industry, company_size, source, signals_detected, signal_strength, intent_score, needs_identified, status, profile_id, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.Type, &l.Name, &l.Email, &l.Phone,
		&l.City, &l.State, &l.Country, &l.PostalCode,
		&l.Industry, &l.CompanySize, &l.Source,
		&l.SignalsDetected, &l.SignalStrength, &l.IntentScore, &l.NeedsIdentified,
		&l.Status, &l.ProfileID, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Lead, error) {
	leadType := p.Type
	if leadType == "" {
		leadType = TypeBusiness
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (lead_type, name, email, phone, city, state, country, postal_code, industry, company_size, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+leadColumns,
		leadType, p.Name, p.Email, p.Phone, p.City, p.State, p.Country, p.PostalCode,
		p.Industry, p.CompanySize, p.Source,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found").WithOp("leads.repository.get")
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

// UpdateSignals replaces the signal log and the derived metrics in one
// statement.
func (r *Repository) UpdateSignals(ctx context.Context, id uuid.UUID, detected []signals.Signal, strength, intent float64, needs []string) (Lead, error) {
	if detected == nil {
		detected = []signals.Signal{}
	}
	if needs == nil {
		needs = []string{}
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			signals_detected = $2, signal_strength = $3, intent_score = $4,
			needs_identified = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, detected, strength, intent, needs,
	)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found").WithOp("leads.repository.update_signals")
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status LeadStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found").WithOp("leads.repository.update_status")
	}
	return nil
}

func (r *Repository) LinkProfile(ctx context.Context, id, profileID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET profile_id = $2, updated_at = now() WHERE id = $1`, id, profileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found").WithOp("leads.repository.link_profile")
	}
	return nil
}

func (r *Repository) List(ctx context.Context, f Filters) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(f.Status)
	}
	if f.Industry != "" {
		query += ` AND lower(industry) = lower(` + arg(f.Industry) + `)`
	}
	if f.State != "" {
		query += ` AND lower(state) = lower(` + arg(f.State) + `)`
	}
	if f.MinIntent > 0 {
		query += ` AND intent_score >= ` + arg(f.MinIntent)
	}
	query += ` ORDER BY intent_score DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// ListOpenIDs returns the ids of every lead not in a terminal status,
// oldest first. Used by batch rescoring.
func (r *Repository) ListOpenIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM leads WHERE status NOT IN ($1, $2) ORDER BY created_at`,
		StatusLost, StatusInvalid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
