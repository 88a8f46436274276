// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadmatch_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Identifier Domain Events
// =============================================================================

// IdentifierTracked is published when a raw identifier observation is recorded.
type IdentifierTracked struct {
	BaseEvent
	IdentifierID uuid.UUID `json:"identifierId"`
	Type         string    `json:"type"`
	SeenCount    int       `json:"seenCount"`
}

func (e IdentifierTracked) EventName() string { return "identifiers.tracked" }

// =============================================================================
// Profile Domain Events
// =============================================================================

// ProfileMerged is published after a source profile is folded into a survivor.
type ProfileMerged struct {
	BaseEvent
	SourceID   uuid.UUID `json:"sourceId"`
	SurvivorID uuid.UUID `json:"survivorId"`
}

func (e ProfileMerged) EventName() string { return "profiles.merged" }

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadScored is published when a lead's signal metrics are recomputed.
type LeadScored struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	SignalStrength float64   `json:"signalStrength"`
	IntentScore    float64   `json:"intentScore"`
	SignalCount    int       `json:"signalCount"`
}

func (e LeadScored) EventName() string { return "leads.scored" }

// =============================================================================
// Matching Domain Events
// =============================================================================

// MatchFound is published when a lead/service match is persisted.
type MatchFound struct {
	BaseEvent
	MatchID     uuid.UUID `json:"matchId"`
	LeadID      uuid.UUID `json:"leadId"`
	ServiceID   uuid.UUID `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	MatchScore  float64   `json:"matchScore"`
	IntentScore float64   `json:"intentScore"`
	Priority    string    `json:"priority"`
}

func (e MatchFound) EventName() string { return "matches.found" }

// =============================================================================
// Alert Domain Events
// =============================================================================

// AlertRaised is published after an alert is persisted.
type AlertRaised struct {
	BaseEvent
	AlertID   uuid.UUID `json:"alertId"`
	LeadID    uuid.UUID `json:"leadId"`
	AlertType string    `json:"alertType"`
	Priority  string    `json:"priority"`
}

func (e AlertRaised) EventName() string { return "alerts.raised" }
