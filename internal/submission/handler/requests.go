package handler

import (
	"strings"

	"amsf/internal/submission/models"
	dErrors "amsf/pkg/domain-errors"
)

// CreateRequest is the body of POST /organizations/{orgID}/submissions.
type CreateRequest struct {
	Year int `json:"year"`
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Year < models.MinYear || r.Year > models.MaxYear {
		return dErrors.New(dErrors.CodeValidation, "year is out of range")
	}
	return nil
}

// TransitionRequest is the body of POST /submissions/{submissionID}/transitions.
type TransitionRequest struct {
	Event string `json:"event"`

	parsed models.Event
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	event, err := models.ParseEvent(strings.TrimSpace(r.Event))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}
	// Validation runs the validators first; the bare event would skip them.
	if event == models.EventValidate {
		return dErrors.New(dErrors.CodeValidation, "use POST /submissions/{id}/validation to validate a submission")
	}
	r.parsed = event
	return nil
}

func (r *TransitionRequest) ParsedEvent() models.Event { return r.parsed }

// OverrideRequest is the body of PUT /submissions/{submissionID}/values/{code}.
// Value is a string for scalar elements and an object for dimensional ones.
type OverrideRequest struct {
	Value *models.Value `json:"value"`
}

func (r *OverrideRequest) Validate() error {
	if r == nil || r.Value == nil {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	return nil
}

// ReviewRequest is the body of POST /submissions/{submissionID}/values/{code}/review.
type ReviewRequest struct {
	Note string `json:"note"`
}

func (r *ReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Note = strings.TrimSpace(r.Note)
	if r.Note == "" {
		return dErrors.New(dErrors.CodeValidation, "note is required")
	}
	return nil
}

// AnswerRequest is the body of PUT /submissions/{submissionID}/answers/{code}.
type AnswerRequest struct {
	Value string `json:"value"`
}

func (r *AnswerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// SignatoryRequest is the body of PUT /submissions/{submissionID}/signatory.
type SignatoryRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

func (r *SignatoryRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "name and title are required")
	}
	return nil
}
