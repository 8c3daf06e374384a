package models

import (
	"fmt"
	"strings"
	"time"

	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
)

const (
	MinYear = 2009
	MaxYear = 2099
)

// Submission is one organization's annual survey.
//
// Invariants:
//   - (OrganizationID, Year) is unique and Year is within [MinYear, MaxYear]
//   - Status only changes through Apply, which consults AttemptTransition
//   - validated and completed submissions never recompute their values
type Submission struct {
	ID              id.SubmissionID   `json:"id"`
	OrganizationID  id.OrganizationID `json:"organization_id"`
	Year            int               `json:"year"`
	Status          Status            `json:"status"`
	TaxonomyVersion string            `json:"taxonomy_version"`

	StartedAt   time.Time  `json:"started_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`

	LockedBy      *id.UserID `json:"locked_by,omitempty"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	ReopenedCount int        `json:"reopened_count"`

	SignatoryName  string `json:"signatory_name,omitempty"`
	SignatoryTitle string `json:"signatory_title,omitempty"`

	DownloadedUnvalidated     bool       `json:"downloaded_unvalidated"`
	UnvalidatedAcknowledgedBy *id.UserID `json:"unvalidated_acknowledged_by,omitempty"`
	UnvalidatedAcknowledgedAt *time.Time `json:"unvalidated_acknowledged_at,omitempty"`

	// Version is bumped by the store on every update.
	Version int `json:"version"`
}

func NewSubmission(submissionID id.SubmissionID, orgID id.OrganizationID, year int, taxonomyVersion string, now time.Time) (*Submission, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization is required")
	}
	if year < MinYear || year > MaxYear {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear))
	}
	if taxonomyVersion == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "taxonomy version is required")
	}
	return &Submission{
		ID:              submissionID,
		OrganizationID:  orgID,
		Year:            year,
		Status:          StatusDraft,
		TaxonomyVersion: taxonomyVersion,
		StartedAt:       now,
		Version:         1,
	}, nil
}

// Editable is true only in draft and in_review.
func (s *Submission) Editable() bool {
	return s.Status == StatusDraft || s.Status == StatusInReview
}

// Apply moves the submission through the lifecycle and records the side
// effects of the transition.
func (s *Submission) Apply(event Event, now time.Time) error {
	to, err := AttemptTransition(s.Status, event)
	if err != nil {
		return err
	}
	switch event {
	case EventValidate:
		s.ValidatedAt = &now
	case EventComplete:
		s.CompletedAt = &now
	case EventReopen:
		s.ReopenedCount++
		s.GeneratedAt = nil
		s.ValidatedAt = nil
		s.CompletedAt = nil
		s.DownloadedUnvalidated = false
		s.UnvalidatedAcknowledgedBy = nil
		s.UnvalidatedAcknowledgedAt = nil
	}
	s.Status = to
	return nil
}

// IsLocked reports whether a non-expired lock is held.
func (s *Submission) IsLocked(now time.Time, ttl time.Duration) bool {
	if s.LockedBy == nil || s.LockedAt == nil {
		return false
	}
	return ttl <= 0 || now.Sub(*s.LockedAt) < ttl
}

// LockedByUser reports whether user holds a live lock.
func (s *Submission) LockedByUser(user id.UserID, now time.Time, ttl time.Duration) bool {
	return s.IsLocked(now, ttl) && *s.LockedBy == user
}

// LockedByOther reports whether someone other than user holds a live lock.
func (s *Submission) LockedByOther(user id.UserID, now time.Time, ttl time.Duration) bool {
	return s.IsLocked(now, ttl) && *s.LockedBy != user
}

// CanLock is true when the lock is free, expired, or already held by user.
func (s *Submission) CanLock(user id.UserID, now time.Time, ttl time.Duration) bool {
	return !s.LockedByOther(user, now, ttl)
}

func (s *Submission) Lock(user id.UserID, now time.Time) {
	s.LockedBy = &user
	s.LockedAt = &now
}

func (s *Submission) Unlock() {
	s.LockedBy = nil
	s.LockedAt = nil
}

// Sign records the signatory required before completion.
func (s *Submission) Sign(name, title string) error {
	name, title = strings.TrimSpace(name), strings.TrimSpace(title)
	if name == "" || title == "" {
		return dErrors.New(dErrors.CodeValidation, "signatory name and title are required")
	}
	if len(name) > 200 || len(title) > 200 {
		return dErrors.New(dErrors.CodeValidation, "signatory name and title must be 200 characters or less")
	}
	s.SignatoryName = name
	s.SignatoryTitle = title
	return nil
}

func (s *Submission) IsSigned() bool {
	return s.SignatoryName != "" && s.SignatoryTitle != ""
}

// AcknowledgeUnvalidated records that user downloaded an artifact that could
// not be validated remotely.
func (s *Submission) AcknowledgeUnvalidated(user id.UserID, now time.Time) {
	s.DownloadedUnvalidated = true
	s.UnvalidatedAcknowledgedBy = &user
	s.UnvalidatedAcknowledgedAt = &now
}

func (s *Submission) MarkGenerated(now time.Time) {
	s.GeneratedAt = &now
}
