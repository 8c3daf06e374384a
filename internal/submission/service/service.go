// Package service runs the submission workflow: lifecycle transitions,
// advisory locking, value edits and the snapshot rule.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"amsf/internal/submission/metrics"
	"amsf/internal/submission/models"
	"amsf/internal/survey/engine"
	"amsf/internal/taxonomy"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/audit"
	"amsf/pkg/platform/sentinel"
)

// DefaultLockTTL is how long an idle lock is honoured before another editor
// may take it over.
const DefaultLockTTL = 30 * time.Minute

type Store interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	FindByOrgAndYear(ctx context.Context, orgID id.OrganizationID, year int) (*models.Submission, error)
	ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Submission, error)
	Execute(ctx context.Context, submissionID id.SubmissionID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error)
	AcquireLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID, now time.Time, ttl time.Duration) (*models.Submission, error)
	ReleaseLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID) error

	Values(ctx context.Context, submissionID id.SubmissionID) ([]models.SubmissionValue, error)
	Value(ctx context.Context, submissionID id.SubmissionID, element string) (*models.SubmissionValue, error)
	SaveValues(ctx context.Context, values []models.SubmissionValue) error
	Answers(ctx context.Context, submissionID id.SubmissionID) ([]models.Answer, error)
	SaveAnswer(ctx context.Context, answer models.Answer) error

	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Populator recomputes a draft submission's stored values.
type Populator interface {
	Populate(ctx context.Context, sub *models.Submission) (engine.PopulateStats, error)
}

// Service orchestrates the submission lifecycle.
type Service struct {
	store      Store
	populator  Populator
	taxonomy   *taxonomy.Taxonomy
	logger     *slog.Logger
	metrics    *metrics.Metrics
	compliance audit.Emitter
	ops        audit.Emitter
	lockTTL    time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithComplianceAudit sets the fail-closed emitter for regulator-relevant
// events. When it fails the operation fails.
func WithComplianceAudit(e audit.Emitter) Option {
	return func(s *Service) { s.compliance = e }
}

// WithOpsAudit sets the best-effort emitter for operational events.
func WithOpsAudit(e audit.Emitter) Option {
	return func(s *Service) { s.ops = e }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) { s.lockTTL = ttl }
}

func New(store Store, populator Populator, tax *taxonomy.Taxonomy, opts ...Option) *Service {
	s := &Service{
		store:     store,
		populator: populator,
		taxonomy:  tax,
		logger:    slog.Default(),
		lockTTL:   DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wrapErr translates store sentinels and state machine errors into coded
// domain errors. Errors that already carry a code pass through.
func wrapErr(err error, action string) error {
	var coded *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "submission not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "a submission already exists for this organization and year")
	case errors.Is(err, sentinel.ErrLocked):
		return dErrors.Wrap(err, dErrors.CodeLocked, "submission is locked by another user")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "submission was modified concurrently")
	case errors.Is(err, models.ErrInvalidTransition):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, err.Error())
	case errors.Is(err, engine.ErrSnapshotFrozen):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "submission values are frozen")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}

// guardEdit refuses edits on frozen submissions and on submissions locked
// by someone else.
func (s *Service) guardEdit(sub *models.Submission, user id.UserID, now time.Time) error {
	if !sub.Editable() {
		return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodePreconditionFailed,
			"submission is not editable in status "+string(sub.Status))
	}
	return s.guardLock(sub, user, now)
}

func (s *Service) guardLock(sub *models.Submission, user id.UserID, now time.Time) error {
	if sub.LockedByOther(user, now, s.lockTTL) {
		if s.metrics != nil {
			s.metrics.LockConflicts.Inc()
		}
		return dErrors.Wrap(sentinel.ErrLocked, dErrors.CodeLocked, "submission is locked by another user")
	}
	return nil
}
