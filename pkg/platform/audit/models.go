package audit

import (
	"context"
	"time"

	id "amsf/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: status
	// transitions, overrides of calculated figures, unvalidated downloads.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity (recalculations, renders) that
	// is useful for debugging and can be sampled or aggregated.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory     `json:"category"`
	Timestamp      time.Time         `json:"timestamp"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	SubmissionID   id.SubmissionID   `json:"submission_id"`
	ActorID        id.UserID         `json:"actor_id"`
	Action         string            `json:"action"`
	// Element is the taxonomy code touched by value-level events.
	Element   string `json:"element,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventSubmissionCreated     AuditEvent = "submission_created"
	EventSubmissionTransition  AuditEvent = "submission_transitioned"
	EventSubmissionReopened    AuditEvent = "submission_reopened"
	EventValuesPopulated       AuditEvent = "values_populated"
	EventValueOverridden       AuditEvent = "value_overridden"
	EventValueConfirmed        AuditEvent = "value_confirmed"
	EventValueReviewed         AuditEvent = "value_reviewed"
	EventAnswerSaved           AuditEvent = "answer_saved"
	EventLockAcquired          AuditEvent = "lock_acquired"
	EventLockReleased          AuditEvent = "lock_released"
	EventArtifactGenerated     AuditEvent = "artifact_generated"
	EventDownloadedUnvalidated AuditEvent = "downloaded_unvalidated"
	EventValidationDegraded    AuditEvent = "validation_degraded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSubmissionCreated:     CategoryCompliance,
	EventSubmissionTransition:  CategoryCompliance,
	EventSubmissionReopened:    CategoryCompliance,
	EventValueOverridden:       CategoryCompliance,
	EventDownloadedUnvalidated: CategoryCompliance,

	EventValuesPopulated:    CategoryOperations,
	EventValueConfirmed:     CategoryOperations,
	EventValueReviewed:      CategoryOperations,
	EventAnswerSaved:        CategoryOperations,
	EventLockAcquired:       CategoryOperations,
	EventLockReleased:       CategoryOperations,
	EventArtifactGenerated:  CategoryOperations,
	EventValidationDegraded: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
