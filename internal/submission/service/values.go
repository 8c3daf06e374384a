package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"amsf/internal/submission/models"
	"amsf/internal/survey/engine"
	"amsf/internal/taxonomy"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/audit"
	"amsf/pkg/platform/sentinel"
	"amsf/pkg/requestcontext"
)

const maxAnswerLength = 4000

// populate recomputes draft values. Other statuses keep what is stored.
func (s *Service) populate(ctx context.Context, sub *models.Submission) (engine.PopulateStats, error) {
	if sub.Status != models.StatusDraft || s.populator == nil {
		return engine.PopulateStats{}, nil
	}
	stats, err := s.populator.Populate(ctx, sub)
	if errors.Is(err, sentinel.ErrNotFound) {
		return stats, dErrors.Wrap(err, dErrors.CodeNotFound, "organization not found")
	}
	if err != nil {
		return stats, wrapErr(err, "compute submission values")
	}
	if stats.Changed() {
		ev := s.event(ctx, audit.EventValuesPopulated, sub, requestcontext.UserID(ctx))
		s.emitOps(ctx, ev)
	}
	return stats, nil
}

// Values returns the stored values. Drafts are recomputed first; validated
// and completed submissions always return their frozen snapshot.
func (s *Service) Values(ctx context.Context, submissionID id.SubmissionID) ([]models.SubmissionValue, error) {
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveRead(start)
	}
	sub, err := s.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.populate(ctx, sub); err != nil {
		return nil, err
	}
	values, err := s.store.Values(ctx, submissionID)
	if err != nil {
		return nil, wrapErr(err, "load submission values")
	}
	return values, nil
}

// MergedAnswers returns the final value set: stored values with manual
// answers taking precedence. Follows the same snapshot rule as Values.
func (s *Service) MergedAnswers(ctx context.Context, submissionID id.SubmissionID) (models.Merged, error) {
	values, err := s.Values(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.Answers(ctx, submissionID)
	if err != nil {
		return nil, wrapErr(err, "load answers")
	}
	return models.Merge(values, answers), nil
}

func (s *Service) element(code string) (taxonomy.Element, error) {
	el, ok := s.taxonomy.Element(strings.TrimSpace(code))
	if !ok {
		return taxonomy.Element{}, dErrors.New(dErrors.CodeValidation, "unknown element "+code)
	}
	return el, nil
}

// editValue loads the submission, guards the edit, and runs fn in one
// transaction with the stored value for el (nil when absent).
func (s *Service) editValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, el taxonomy.Element,
	fn func(txCtx context.Context, sub *models.Submission, current *models.SubmissionValue) error,
) error {
	now := requestcontext.Now(ctx)
	return s.store.WithinTx(ctx, func(txCtx context.Context) error {
		sub, err := s.store.FindByID(txCtx, submissionID)
		if err != nil {
			return wrapErr(err, "load submission")
		}
		if err := s.guardEdit(sub, user, now); err != nil {
			return err
		}
		current, err := s.store.Value(txCtx, submissionID, el.Code)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return wrapErr(err, "load submission value")
		}
		return fn(txCtx, sub, current)
	})
}

// OverrideValue replaces an element's value with a manual edit. The replaced
// value is kept for review and the row is never recomputed again.
func (s *Service) OverrideValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code string, value models.Value) (*models.SubmissionValue, error) {
	el, err := s.element(code)
	if err != nil {
		return nil, err
	}
	if value.IsDimensional() && !el.IsDimensional() {
		return nil, dErrors.New(dErrors.CodeValidation, el.Code+" does not accept a dimensional value")
	}
	if !value.IsDimensional() && el.IsDimensional() {
		return nil, dErrors.New(dErrors.CodeValidation, el.Code+" requires a dimensional value")
	}
	if value.IsDimensional() {
		if value, err = normalizeDims(el, value); err != nil {
			return nil, err
		}
	}
	now := requestcontext.Now(ctx)

	var saved models.SubmissionValue
	err = s.editValue(ctx, submissionID, user, el, func(txCtx context.Context, sub *models.Submission, current *models.SubmissionValue) error {
		v := models.SubmissionValue{SubmissionID: submissionID, ElementName: el.Code, Source: models.Source(el.Source)}
		if current != nil {
			v = *current
		}
		previous := v.Value.String()
		v.ApplyOverride(value, user, now)
		if err := s.store.SaveValues(txCtx, []models.SubmissionValue{v}); err != nil {
			return wrapErr(err, "save override")
		}
		ev := s.event(txCtx, audit.EventValueOverridden, sub, user)
		ev.Element = el.Code
		ev.Detail = previous + " -> " + value.String()
		if err := s.emitCompliance(txCtx, ev); err != nil {
			return err
		}
		saved = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Overrides.Inc()
	}
	s.logger.InfoContext(ctx, "submission value overridden",
		"submission_id", submissionID.String(),
		"element", el.Code,
	)
	return &saved, nil
}

// normalizeDims upper-cases country keys so each jurisdiction maps to one
// XBRL context. Keys that collapse onto the same code are rejected.
func normalizeDims(el taxonomy.Element, value models.Value) (models.Value, error) {
	dims := value.Dims()
	out := make(map[string]string, len(dims))
	for _, raw := range value.Keys() {
		key := id.NormalizeCountry(raw)
		if key == "" {
			return models.Value{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s: %q is not a country code", el.Code, raw))
		}
		if _, dup := out[key.String()]; dup {
			return models.Value{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s: duplicate country %s", el.Code, key))
		}
		out[key.String()] = dims[raw]
	}
	return models.Dimensional(out), nil
}

// ConfirmValue marks a stored value as checked.
func (s *Service) ConfirmValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code string) (*models.SubmissionValue, error) {
	return s.review(ctx, submissionID, user, code, audit.EventValueConfirmed, func(v *models.SubmissionValue, now time.Time) {
		v.ApplyConfirm(user, now)
	})
}

// ReviewValue attaches a reviewer note to a stored value.
func (s *Service) ReviewValue(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code, note string) (*models.SubmissionValue, error) {
	if len(note) > maxAnswerLength {
		return nil, dErrors.New(dErrors.CodeValidation, "review note is too long")
	}
	return s.review(ctx, submissionID, user, code, audit.EventValueReviewed, func(v *models.SubmissionValue, now time.Time) {
		v.ApplyReview(note, user, now)
	})
}

func (s *Service) review(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code string, action audit.AuditEvent, apply func(*models.SubmissionValue, time.Time)) (*models.SubmissionValue, error) {
	el, err := s.element(code)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var (
		saved models.SubmissionValue
		sub   *models.Submission
	)
	err = s.editValue(ctx, submissionID, user, el, func(txCtx context.Context, current *models.Submission, v *models.SubmissionValue) error {
		if v == nil {
			return dErrors.New(dErrors.CodeNotFound, "no value stored for "+el.Code)
		}
		apply(v, now)
		if err := s.store.SaveValues(txCtx, []models.SubmissionValue{*v}); err != nil {
			return wrapErr(err, "save review")
		}
		saved, sub = *v, current
		return nil
	})
	if err != nil {
		return nil, err
	}
	ev := s.event(ctx, action, sub, user)
	ev.Element = el.Code
	s.emitOps(ctx, ev)
	return &saved, nil
}

// SaveAnswer stores a manual free-text answer. Answers win over stored
// values with the same code at merge time.
func (s *Service) SaveAnswer(ctx context.Context, submissionID id.SubmissionID, user id.UserID, code, value string) (*models.Answer, error) {
	el, err := s.element(code)
	if err != nil {
		return nil, err
	}
	if el.IsDimensional() {
		return nil, dErrors.New(dErrors.CodeValidation, el.Code+" is dimensional; use an override instead")
	}
	if len(value) > maxAnswerLength {
		return nil, dErrors.New(dErrors.CodeValidation, "answer is too long")
	}
	now := requestcontext.Now(ctx)

	answer := models.Answer{SubmissionID: submissionID, XbrlID: el.Code, Value: strings.TrimSpace(value), UpdatedBy: user, UpdatedAt: now}
	var sub *models.Submission
	err = s.editValue(ctx, submissionID, user, el, func(txCtx context.Context, current *models.Submission, _ *models.SubmissionValue) error {
		if err := s.store.SaveAnswer(txCtx, answer); err != nil {
			return wrapErr(err, "save answer")
		}
		sub = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	ev := s.event(ctx, audit.EventAnswerSaved, sub, user)
	ev.Element = el.Code
	s.emitOps(ctx, ev)
	return &answer, nil
}
