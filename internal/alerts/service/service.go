package service

import (
	"context"
	"fmt"
	"strings"

	"leadmatch_backend/internal/alerts/repository"
	"leadmatch_backend/internal/events"
	"leadmatch_backend/platform/apperr"
	"leadmatch_backend/platform/logger"
	"leadmatch_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	TypeHighScoreMatch = "high_score_match"
	TypeGeographic     = "geographic_opportunity"
	TypeIndustry       = "industry_opportunity"
	TypeBehaviorChange = "behavior_change"
)

// Store is the persistence surface the dispatcher needs.
type Store interface {
	CreateRule(ctx context.Context, p repository.CreateRuleParams) (repository.AlertRule, error)
	ListActiveRules(ctx context.Context, ruleType string) ([]repository.AlertRule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error
	CreateAlert(ctx context.Context, p repository.CreateAlertParams) (repository.Alert, error)
	LinkRule(ctx context.Context, alertID, ruleID uuid.UUID) error
	GetAlert(ctx context.Context, id uuid.UUID) (repository.Alert, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, status repository.AlertStatus) error
	ListAlerts(ctx context.Context, f repository.AlertFilters) ([]repository.Alert, error)
}

type EmitParams struct {
	LeadID    *uuid.UUID
	AlertType string
	Title     string
	Message   string
	Priority  string
	Data      map[string]any
}

type Service struct {
	repo     Store
	channels map[string]Channel
	bus      events.Bus
	log      *logger.Logger
	validate *validator.Validator
}

func New(repo Store, channels []Channel, bus events.Bus, log *logger.Logger, validate *validator.Validator) *Service {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &Service{repo: repo, channels: byName, bus: bus, log: log, validate: validate}
}

func (s *Service) CreateRule(ctx context.Context, p repository.CreateRuleParams) (repository.AlertRule, error) {
	if s.validate != nil {
		if err := s.validate.Struct(p); err != nil {
			return repository.AlertRule{}, apperr.Wrap(apperr.KindValidation, "invalid rule", err).WithOp("alerts.service.create_rule")
		}
	}
	for _, cond := range p.Conditions {
		switch cond.Op {
		case repository.OpMin, repository.OpMax, repository.OpEq:
		default:
			return repository.AlertRule{}, apperr.Validation(fmt.Sprintf("unknown condition op %q", cond.Op)).WithOp("alerts.service.create_rule")
		}
	}
	return s.repo.CreateRule(ctx, p)
}

// Emit persists the alert with status new, then evaluates the active rules
// of the same type. The first matching rule is linked to the alert and its
// channels fanned out. Rule evaluation and channel failures never undo the
// persisted alert.
func (s *Service) Emit(ctx context.Context, p EmitParams) (repository.Alert, error) {
	if p.AlertType == "" || p.Title == "" {
		return repository.Alert{}, apperr.Validation("alert type and title are required").WithOp("alerts.service.emit")
	}

	alert, err := s.repo.CreateAlert(ctx, repository.CreateAlertParams{
		LeadID:    p.LeadID,
		AlertType: p.AlertType,
		Title:     p.Title,
		Message:   p.Message,
		Priority:  p.Priority,
		Data:      p.Data,
	})
	if err != nil {
		return repository.Alert{}, err
	}

	rules, err := s.repo.ListActiveRules(ctx, p.AlertType)
	if err != nil {
		if s.log != nil {
			s.log.DatabaseError("list alert rules", err)
		}
		rules = nil
	}

	for _, rule := range rules {
		matched, err := evaluateRule(rule, alert.Data)
		if err != nil {
			if s.log != nil {
				s.log.RuleEvalError(rule.ID.String(), err)
			}
			continue
		}
		if !matched {
			continue
		}

		if err := s.repo.LinkRule(ctx, alert.ID, rule.ID); err != nil {
			if s.log != nil {
				s.log.DatabaseError("link alert rule", err)
			}
		} else {
			alert.RuleID = &rule.ID
		}
		s.fanOut(ctx, alert, rule)
		break
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.AlertRaised{
			BaseEvent: events.NewBaseEvent(),
			AlertID:   alert.ID,
			LeadID:    derefUUID(p.LeadID),
			AlertType: alert.AlertType,
			Priority:  alert.Priority,
		})
	}
	return alert, nil
}

func (s *Service) fanOut(ctx context.Context, alert repository.Alert, rule repository.AlertRule) {
	for _, name := range rule.Channels {
		if name == "dashboard" {
			// Satisfied by persistence.
			continue
		}
		ch, ok := s.channels[name]
		if !ok {
			if s.log != nil {
				s.log.Warn("alert channel not configured", "channel", name, "rule_id", rule.ID)
			}
			continue
		}
		if err := ch.Deliver(ctx, alert, rule.Recipients); err != nil && s.log != nil {
			s.log.Error("alert delivery failed", "channel", name, "alert_id", alert.ID, "error", err)
		}
	}
}

// evaluateRule checks every condition against the alert data. Conditions
// AND together; a missing field or uncoercible value is an evaluation
// error, not a non-match.
func evaluateRule(rule repository.AlertRule, data map[string]any) (bool, error) {
	for _, cond := range rule.Conditions {
		value, ok := data[cond.Field]
		if !ok {
			return false, fmt.Errorf("field %q missing from alert data", cond.Field)
		}
		switch cond.Op {
		case repository.OpMin, repository.OpMax:
			got, err := toFloat(value)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", cond.Field, err)
			}
			want, err := toFloat(cond.Value)
			if err != nil {
				return false, fmt.Errorf("condition value for %q: %w", cond.Field, err)
			}
			if cond.Op == repository.OpMin && got < want {
				return false, nil
			}
			if cond.Op == repository.OpMax && got > want {
				return false, nil
			}
		case repository.OpEq:
			if !looselyEqual(value, cond.Value) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unknown condition op %q", cond.Op)
		}
	}
	return true, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

func looselyEqual(a, b any) bool {
	if fa, err := toFloat(a); err == nil {
		if fb, err := toFloat(b); err == nil {
			return fa == fb
		}
	}
	return strings.EqualFold(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

// EmitMatchFound raises an alert for a freshly scored match. Priority
// escalates with the score: urgent at 90, high at 75.
func (s *Service) EmitMatchFound(ctx context.Context, leadID uuid.UUID, serviceName string, matchScore, intentScore float64) (repository.Alert, error) {
	priority := "medium"
	switch {
	case matchScore >= 90:
		priority = "urgent"
	case matchScore >= 75:
		priority = "high"
	}
	return s.Emit(ctx, EmitParams{
		LeadID:    &leadID,
		AlertType: TypeHighScoreMatch,
		Title:     fmt.Sprintf("Match found: %s", serviceName),
		Message:   fmt.Sprintf("A lead matched %s with score %.1f.", serviceName, matchScore),
		Priority:  priority,
		Data: map[string]any{
			"match_score":  matchScore,
			"intent_score": intentScore,
			"service_name": serviceName,
		},
	})
}

// EmitGeographic raises an alert for a lead inside a watched area.
func (s *Service) EmitGeographic(ctx context.Context, leadID uuid.UUID, area string, intentScore float64) (repository.Alert, error) {
	return s.Emit(ctx, EmitParams{
		LeadID:    &leadID,
		AlertType: TypeGeographic,
		Title:     fmt.Sprintf("New lead in %s", area),
		Message:   fmt.Sprintf("A lead appeared in %s with intent score %.1f.", area, intentScore),
		Priority:  "medium",
		Data:      map[string]any{"area": area, "intent_score": intentScore},
	})
}

// EmitIndustry raises an alert for a lead in a watched industry.
func (s *Service) EmitIndustry(ctx context.Context, leadID uuid.UUID, industry string, intentScore float64) (repository.Alert, error) {
	return s.Emit(ctx, EmitParams{
		LeadID:    &leadID,
		AlertType: TypeIndustry,
		Title:     fmt.Sprintf("New %s lead", industry),
		Message:   fmt.Sprintf("A lead in %s has intent score %.1f.", industry, intentScore),
		Priority:  "medium",
		Data:      map[string]any{"industry": industry, "intent_score": intentScore},
	})
}

// EmitBehaviorChange raises an alert when a lead's signal picture shifts.
func (s *Service) EmitBehaviorChange(ctx context.Context, leadID uuid.UUID, change string, signalStrength float64) (repository.Alert, error) {
	priority := "medium"
	if signalStrength >= 80 {
		priority = "high"
	}
	return s.Emit(ctx, EmitParams{
		LeadID:    &leadID,
		AlertType: TypeBehaviorChange,
		Title:     "Lead behavior changed",
		Message:   change,
		Priority:  priority,
		Data:      map[string]any{"change": change, "signal_strength": signalStrength},
	})
}

// Legal alert status transitions. Actioned and dismissed are terminal.
var transitions = map[repository.AlertStatus][]repository.AlertStatus{
	repository.StatusNew:  {repository.StatusRead, repository.StatusDismissed},
	repository.StatusRead: {repository.StatusActioned},
}

// Transition moves an alert through its state machine. Illegal moves
// return a Conflict.
func (s *Service) Transition(ctx context.Context, alertID uuid.UUID, to repository.AlertStatus) (repository.Alert, error) {
	alert, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return repository.Alert{}, err
	}

	allowed := false
	for _, next := range transitions[alert.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return repository.Alert{}, apperr.Conflict(
			fmt.Sprintf("cannot transition alert from %s to %s", alert.Status, to),
		).WithOp("alerts.service.transition")
	}

	if err := s.repo.UpdateAlertStatus(ctx, alertID, to); err != nil {
		return repository.Alert{}, err
	}
	alert.Status = to
	return alert, nil
}

func (s *Service) ListAlerts(ctx context.Context, f repository.AlertFilters) ([]repository.Alert, error) {
	return s.repo.ListAlerts(ctx, f)
}

// SubscribeToMatches wires the dispatcher to the event bus so every
// persisted match raises an alert without the matching module knowing
// about alerting.
func (s *Service) SubscribeToMatches(bus events.Bus) {
	bus.Subscribe(events.MatchFound{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		found, ok := e.(events.MatchFound)
		if !ok {
			return nil
		}
		_, err := s.EmitMatchFound(ctx, found.LeadID, found.ServiceName, found.MatchScore, found.IntentScore)
		return err
	}))
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
