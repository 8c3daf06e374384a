package models

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a submission.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusInReview  Status = "in_review"
	StatusValidated Status = "validated"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusValidated, StatusCompleted:
		return true
	}
	return false
}

// IsFrozen is true once values must no longer be recomputed.
func (s Status) IsFrozen() bool {
	return s == StatusValidated || s == StatusCompleted
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown submission status %q", raw)
	}
	return s, nil
}

// Event names a requested lifecycle move.
type Event string

const (
	EventStartReview Event = "start_review"
	EventValidate    Event = "validate"
	EventComplete    Event = "complete"
	EventReject      Event = "reject"
	EventReopen      Event = "reopen"
)

func ParseEvent(raw string) (Event, error) {
	e := Event(raw)
	for _, known := range []Event{EventStartReview, EventValidate, EventComplete, EventReject, EventReopen} {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown submission event %q", raw)
}

type transition struct {
	from  Status
	event Event
}

var transitions = map[transition]Status{
	{StatusDraft, EventStartReview}: StatusInReview,
	{StatusInReview, EventValidate}:  StatusValidated,
	{StatusValidated, EventComplete}: StatusCompleted,
	{StatusInReview, EventReject}:    StatusDraft,
	{StatusCompleted, EventReopen}:   StatusDraft,
}

// ErrInvalidTransition matches every InvalidTransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid transition")

// InvalidTransitionError reports an illegal lifecycle move. It is never retried.
type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a submission in status %s", e.Event, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// AttemptTransition is the only place the transition table is consulted.
func AttemptTransition(from Status, event Event) (Status, error) {
	to, ok := transitions[transition{from, event}]
	if !ok {
		return from, &InvalidTransitionError{From: from, Event: event}
	}
	return to, nil
}

// AllowedEvents lists the events that succeed from a status, in table order.
func AllowedEvents(from Status) []Event {
	var out []Event
	for _, e := range []Event{EventStartReview, EventValidate, EventComplete, EventReject, EventReopen} {
		if _, ok := transitions[transition{from, e}]; ok {
			out = append(out, e)
		}
	}
	return out
}
