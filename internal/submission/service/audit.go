package service

import (
	"context"

	"amsf/internal/submission/models"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/audit"
	"amsf/pkg/requestcontext"
)

func (s *Service) event(ctx context.Context, action audit.AuditEvent, sub *models.Submission, actor id.UserID) audit.Event {
	return audit.Event{
		Category:       action.Category(),
		Timestamp:      requestcontext.Now(ctx),
		OrganizationID: sub.OrganizationID,
		SubmissionID:   sub.ID,
		ActorID:        actor,
		Action:         string(action),
		RequestID:      requestcontext.RequestID(ctx),
	}
}

// emitCompliance fails the caller when the event cannot be recorded.
func (s *Service) emitCompliance(ctx context.Context, event audit.Event) error {
	if s.compliance == nil {
		return nil
	}
	if err := s.compliance.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// emitOps logs and drops failures.
func (s *Service) emitOps(ctx context.Context, event audit.Event) {
	if s.ops == nil {
		return
	}
	if err := s.ops.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"submission_id", event.SubmissionID.String(),
			"error", err,
		)
	}
}
