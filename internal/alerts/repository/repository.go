package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmatch_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConditionOp string

const (
	OpMin ConditionOp = "min"
	OpMax ConditionOp = "max"
	OpEq  ConditionOp = "eq"
)

// Condition is one threshold or equality check against an alert's data
// payload. All of a rule's conditions must pass.
type Condition struct {
	Field string      `json:"field"`
	Op    ConditionOp `json:"op"`
	Value any         `json:"value"`
}

type AlertStatus string

const (
	StatusNew       AlertStatus = "new"
	StatusRead      AlertStatus = "read"
	StatusActioned  AlertStatus = "actioned"
	StatusDismissed AlertStatus = "dismissed"
)

type AlertRule struct {
	ID         uuid.UUID
	RuleType   string
	Name       string
	Conditions []Condition
	Channels   []string
	Recipients []string
	Priority   string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Alert struct {
	ID        uuid.UUID
	LeadID    *uuid.UUID
	RuleID    *uuid.UUID
	AlertType string
	Title     string
	Message   string
	Priority  string
	Data      map[string]any
	Status    AlertStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateRuleParams struct {
	RuleType   string `validate:"required"`
	Name       string
	Conditions []Condition
	Channels   []string
	Recipients []string
	Priority   string
}

type CreateAlertParams struct {
	LeadID    *uuid.UUID
	AlertType string
	Title     string
	Message   string
	Priority  string
	Data      map[string]any
}

// AlertFilters narrows ListAlerts. Zero values mean "no filter".
type AlertFilters struct {
	Status    AlertStatus
	AlertType string
	Priority  string
	Limit     int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `id, rule_type, name, conditions, channels, recipients, priority, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (AlertRule, error) {
	var r AlertRule
	err := row.Scan(
		&r.ID, &r.RuleType, &r.Name, &r.Conditions, &r.Channels,
		&r.Recipients, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r *Repository) CreateRule(ctx context.Context, p CreateRuleParams) (AlertRule, error) {
	conditions := p.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}
	channels := p.Channels
	if len(channels) == 0 {
		channels = []string{"dashboard"}
	}
	priority := p.Priority
	if priority == "" {
		priority = "medium"
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO alert_rules (rule_type, name, conditions, channels, recipients, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+ruleColumns,
		p.RuleType, p.Name, conditions, channels, orEmpty(p.Recipients), priority,
	)
	return scanRule(row)
}

// ListActiveRules returns the active rules for one rule type.
func (r *Repository) ListActiveRules(ctx context.Context, ruleType string) ([]AlertRule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM alert_rules WHERE rule_type = $1 AND is_active ORDER BY created_at`,
		ruleType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]AlertRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *Repository) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE alert_rules SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert rule not found").WithOp("alerts.repository.set_rule_active")
	}
	return nil
}

const alertColumns = `id, lead_id, rule_id, alert_type, title, message, priority, data, status, created_at, updated_at`

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID, &a.LeadID, &a.RuleID, &a.AlertType, &a.Title, &a.Message,
		&a.Priority, &a.Data, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *Repository) CreateAlert(ctx context.Context, p CreateAlertParams) (Alert, error) {
	data := p.Data
	if data == nil {
		data = map[string]any{}
	}
	priority := p.Priority
	if priority == "" {
		priority = "medium"
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO alerts (lead_id, alert_type, title, message, priority, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+alertColumns,
		p.LeadID, p.AlertType, p.Title, p.Message, priority, data,
	)
	return scanAlert(row)
}

// LinkRule records which rule matched the alert.
func (r *Repository) LinkRule(ctx context.Context, alertID, ruleID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE alerts SET rule_id = $2, updated_at = now() WHERE id = $1`, alertID, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert not found").WithOp("alerts.repository.link_rule")
	}
	return nil
}

func (r *Repository) GetAlert(ctx context.Context, id uuid.UUID) (Alert, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, apperr.NotFound("alert not found").WithOp("alerts.repository.get")
	}
	if err != nil {
		return Alert{}, err
	}
	return a, nil
}

func (r *Repository) UpdateAlertStatus(ctx context.Context, id uuid.UUID, status AlertStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE alerts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("alert not found").WithOp("alerts.repository.update_status")
	}
	return nil
}

func (r *Repository) ListAlerts(ctx context.Context, f AlertFilters) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(f.Status)
	}
	if f.AlertType != "" {
		query += ` AND alert_type = ` + arg(f.AlertType)
	}
	if f.Priority != "" {
		query += ` AND priority = ` + arg(f.Priority)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
