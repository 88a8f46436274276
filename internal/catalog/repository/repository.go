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

// ServiceOffering is a provider's service with its targeting criteria.
// Targeting arrays are matched case-insensitively by the scoring engine;
// an empty array means "no preference".
type ServiceOffering struct {
	ID                 uuid.UUID
	Name               string
	ServiceType        string
	Category           string
	Description        string
	TargetLocations    []string
	TargetIndustries   []string
	TargetCompanySizes []string
	TargetAudience     string
	Requirements       map[string]any
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type CreateParams struct {
	Name               string `validate:"required"`
	ServiceType        string `validate:"required"`
	Category           string
	Description        string
	TargetLocations    []string
	TargetIndustries   []string
	TargetCompanySizes []string
	TargetAudience     string
	Requirements       map[string]any
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const offeringColumns = `id, name, service_type, category, description, target_locations, target_industries, target_company_sizes, target_audience, requirements, is_active, created_at, updated_at`

func scanOffering(row pgx.Row) (ServiceOffering, error) {
	var o ServiceOffering
	err := row.Scan(
		&o.ID, &o.Name, &o.ServiceType, &o.Category, &o.Description,
		&o.TargetLocations, &o.TargetIndustries, &o.TargetCompanySizes,
		&o.TargetAudience, &o.Requirements, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (ServiceOffering, error) {
	requirements := p.Requirements
	if requirements == nil {
		requirements = map[string]any{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO service_offerings (name, service_type, category, description, target_locations, target_industries, target_company_sizes, target_audience, requirements)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+offeringColumns,
		p.Name, p.ServiceType, p.Category, p.Description,
		orEmpty(p.TargetLocations), orEmpty(p.TargetIndustries), orEmpty(p.TargetCompanySizes),
		p.TargetAudience, requirements,
	)
	return scanOffering(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (ServiceOffering, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+offeringColumns+` FROM service_offerings WHERE id = $1`, id)
	o, err := scanOffering(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceOffering{}, apperr.NotFound("service offering not found").WithOp("catalog.repository.get")
	}
	if err != nil {
		return ServiceOffering{}, err
	}
	return o, nil
}

// ListActive returns every offering eligible for matching.
func (r *Repository) ListActive(ctx context.Context) ([]ServiceOffering, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+offeringColumns+` FROM service_offerings WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offerings := make([]ServiceOffering, 0)
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, o)
	}
	return offerings, rows.Err()
}

// SetActive toggles whether the offering participates in matching.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE service_offerings SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service offering not found").WithOp("catalog.repository.set_active")
	}
	return nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
