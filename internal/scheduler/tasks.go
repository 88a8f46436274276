package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskMatchLead = "leads.match"

const TaskMatchBackfill = "leads.match_backfill"

const TaskReconcileProfiles = "profiles.reconcile"

const TaskCleanupIdentifiers = "identifiers.cleanup"

type MatchLeadPayload struct {
	LeadID string `json:"leadId"`
	TopN   int    `json:"topN"`
}

type MatchBackfillPayload struct {
	TopN int `json:"topN"`
}

type ReconcileProfilesPayload struct {
	MinShared int `json:"minShared"`
}

type CleanupIdentifiersPayload struct {
	RetentionDays int `json:"retentionDays"`
}

func NewMatchLeadTask(payload MatchLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatchLead, data), nil
}

func ParseMatchLeadPayload(task *asynq.Task) (MatchLeadPayload, error) {
	var payload MatchLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MatchLeadPayload{}, err
	}
	return payload, nil
}

func NewMatchBackfillTask(payload MatchBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatchBackfill, data), nil
}

func ParseMatchBackfillPayload(task *asynq.Task) (MatchBackfillPayload, error) {
	var payload MatchBackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MatchBackfillPayload{}, err
	}
	return payload, nil
}

func NewReconcileProfilesTask(payload ReconcileProfilesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileProfiles, data), nil
}

func ParseReconcileProfilesPayload(task *asynq.Task) (ReconcileProfilesPayload, error) {
	var payload ReconcileProfilesPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReconcileProfilesPayload{}, err
	}
	return payload, nil
}

func NewCleanupIdentifiersTask(payload CleanupIdentifiersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCleanupIdentifiers, data), nil
}

func ParseCleanupIdentifiersPayload(task *asynq.Task) (CleanupIdentifiersPayload, error) {
	var payload CleanupIdentifiersPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CleanupIdentifiersPayload{}, err
	}
	return payload, nil
}
