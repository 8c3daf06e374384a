package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"amsf/internal/submission/models"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/audit"
	"amsf/pkg/platform/sentinel"
	"amsf/pkg/requestcontext"
)

// Create opens a draft submission for (orgID, year) stamped with the loaded
// taxonomy version and computes its initial values. The row, its audit event
// and its values commit together.
func (s *Service) Create(ctx context.Context, orgID id.OrganizationID, year int, user id.UserID) (*models.Submission, error) {
	now := requestcontext.Now(ctx)
	sub, err := models.NewSubmission(id.SubmissionID(uuid.New()), orgID, year, s.taxonomy.Version, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, sub); err != nil {
			return wrapErr(err, "create submission")
		}
		if err := s.emitCompliance(txCtx, s.event(txCtx, audit.EventSubmissionCreated, sub, user)); err != nil {
			return err
		}
		_, err := s.populate(txCtx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SubmissionsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "submission created",
		"submission_id", sub.ID.String(),
		"organization_id", orgID.String(),
		"year", year,
		"taxonomy_version", sub.TaxonomyVersion,
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	sub, err := s.store.FindByID(ctx, submissionID)
	if err != nil {
		return nil, wrapErr(err, "load submission")
	}
	return sub, nil
}

// FindByOrgAndYear returns sentinel.ErrNotFound wrapped in CodeNotFound when
// the organization has no submission for year.
func (s *Service) FindByOrgAndYear(ctx context.Context, orgID id.OrganizationID, year int) (*models.Submission, error) {
	sub, err := s.store.FindByOrgAndYear(ctx, orgID, year)
	if err != nil {
		return nil, wrapErr(err, "load submission")
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, orgID id.OrganizationID) ([]*models.Submission, error) {
	subs, err := s.store.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, wrapErr(err, "list submissions")
	}
	return subs, nil
}

// Transition applies a lifecycle event. Illegal moves fail with
// CodeInvalidTransition and still match models.ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, submissionID id.SubmissionID, event models.Event, user id.UserID) (*models.Submission, error) {
	sub, err := s.transition(ctx, submissionID, event, user)
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(event), err)
	}
	return sub, err
}

func (s *Service) transition(ctx context.Context, submissionID id.SubmissionID, event models.Event, user id.UserID) (*models.Submission, error) {
	now := requestcontext.Now(ctx)

	// Review starts from freshly computed values so the frozen snapshot
	// reflects the data as of the move out of draft.
	if event == models.EventStartReview {
		current, err := s.Get(ctx, submissionID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusDraft {
			if _, err := s.populate(ctx, current); err != nil {
				return nil, err
			}
		}
	}

	var (
		updated *models.Submission
		from    models.Status
	)
	err := s.store.WithinTx(ctx, func(txCtx context.Context) error {
		sub, err := s.store.Execute(txCtx, submissionID,
			func(sub *models.Submission) error {
				if _, err := models.AttemptTransition(sub.Status, event); err != nil {
					return err
				}
				if err := s.guardLock(sub, user, now); err != nil {
					return err
				}
				if event == models.EventComplete && !sub.IsSigned() {
					return dErrors.New(dErrors.CodePreconditionFailed, "a signatory is required before completion")
				}
				from = sub.Status
				return nil
			},
			func(sub *models.Submission) {
				// AttemptTransition already succeeded in validate.
				_ = sub.Apply(event, now)
			},
		)
		if err != nil {
			return err
		}
		action := audit.EventSubmissionTransition
		if event == models.EventReopen {
			action = audit.EventSubmissionReopened
		}
		ev := s.event(txCtx, action, sub, user)
		ev.Detail = fmt.Sprintf("%s -> %s", from, sub.Status)
		if err := s.emitCompliance(txCtx, ev); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		var ite *models.InvalidTransitionError
		if errors.As(err, &ite) {
			s.logger.WarnContext(ctx, "invalid submission transition",
				"submission_id", submissionID.String(),
				"from", string(ite.From),
				"event", string(ite.Event),
			)
		}
		return nil, wrapErr(err, "transition submission")
	}

	s.logger.InfoContext(ctx, "submission transitioned",
		"submission_id", submissionID.String(),
		"event", string(event),
		"from", string(from),
		"to", string(updated.Status),
	)
	return updated, nil
}

func (s *Service) StartReview(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	return s.Transition(ctx, submissionID, models.EventStartReview, user)
}

func (s *Service) Validate(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	return s.Transition(ctx, submissionID, models.EventValidate, user)
}

func (s *Service) Complete(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	return s.Transition(ctx, submissionID, models.EventComplete, user)
}

func (s *Service) Reject(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	return s.Transition(ctx, submissionID, models.EventReject, user)
}

func (s *Service) Reopen(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	return s.Transition(ctx, submissionID, models.EventReopen, user)
}

// AcquireLock takes the advisory editing lock for user. It succeeds when the
// lock is free, expired, or already held by user.
func (s *Service) AcquireLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	if user.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "a user is required to lock a submission")
	}
	sub, err := s.store.AcquireLock(ctx, submissionID, user, requestcontext.Now(ctx), s.lockTTL)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) && s.metrics != nil {
			s.metrics.LockConflicts.Inc()
		}
		return nil, wrapErr(err, "acquire lock")
	}
	s.emitOps(ctx, s.event(ctx, audit.EventLockAcquired, sub, user))
	return sub, nil
}

// ReleaseLock clears user's lock. Releasing a free lock succeeds.
func (s *Service) ReleaseLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID) error {
	if err := s.store.ReleaseLock(ctx, submissionID, user); err != nil {
		return wrapErr(err, "release lock")
	}
	if sub, err := s.store.FindByID(ctx, submissionID); err == nil {
		s.emitOps(ctx, s.event(ctx, audit.EventLockReleased, sub, user))
	}
	return nil
}

// LockedBy reports whether user currently holds a live lock.
func (s *Service) LockedBy(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (bool, error) {
	sub, err := s.Get(ctx, submissionID)
	if err != nil {
		return false, err
	}
	return sub.LockedByUser(user, requestcontext.Now(ctx), s.lockTTL), nil
}

// Sign records the signatory. Completed submissions must be reopened first.
func (s *Service) Sign(ctx context.Context, submissionID id.SubmissionID, user id.UserID, name, title string) (*models.Submission, error) {
	now := requestcontext.Now(ctx)
	probe := &models.Submission{}
	if err := probe.Sign(name, title); err != nil {
		return nil, err
	}
	sub, err := s.store.Execute(ctx, submissionID,
		func(sub *models.Submission) error {
			if sub.Status == models.StatusCompleted {
				return dErrors.New(dErrors.CodePreconditionFailed, "a completed submission cannot be re-signed")
			}
			return s.guardLock(sub, user, now)
		},
		func(sub *models.Submission) {
			sub.SignatoryName = probe.SignatoryName
			sub.SignatoryTitle = probe.SignatoryTitle
		},
	)
	if err != nil {
		return nil, wrapErr(err, "sign submission")
	}
	return sub, nil
}

// MarkGenerated stamps the time an artifact was produced.
func (s *Service) MarkGenerated(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	now := requestcontext.Now(ctx)
	sub, err := s.store.Execute(ctx, submissionID, nil, func(sub *models.Submission) {
		sub.MarkGenerated(now)
	})
	if err != nil {
		return nil, wrapErr(err, "mark submission generated")
	}
	s.emitOps(ctx, s.event(ctx, audit.EventArtifactGenerated, sub, user))
	return sub, nil
}

// AcknowledgeUnvalidatedDownload records that user accepted an artifact the
// remote validator could not check.
func (s *Service) AcknowledgeUnvalidatedDownload(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error) {
	if user.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "a user is required to acknowledge an unvalidated download")
	}
	now := requestcontext.Now(ctx)

	var updated *models.Submission
	err := s.store.WithinTx(ctx, func(txCtx context.Context) error {
		sub, err := s.store.Execute(txCtx, submissionID, nil, func(sub *models.Submission) {
			sub.AcknowledgeUnvalidated(user, now)
		})
		if err != nil {
			return err
		}
		if err := s.emitCompliance(txCtx, s.event(txCtx, audit.EventDownloadedUnvalidated, sub, user)); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, wrapErr(err, "acknowledge unvalidated download")
	}
	if s.metrics != nil {
		s.metrics.UnvalidatedExports.Inc()
	}
	s.logger.WarnContext(ctx, "unvalidated artifact downloaded",
		"submission_id", submissionID.String(),
		"user_id", user.String(),
	)
	return updated, nil
}
