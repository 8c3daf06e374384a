// Package orchestrator runs the local checker and, when enabled, the remote
// validation service, and combines their results.
package orchestrator

import (
	"context"
	"log/slog"

	submodels "amsf/internal/submission/models"
	"amsf/internal/validation/local"
	"amsf/internal/validation/metrics"
	"amsf/internal/validation/models"
	"amsf/internal/validation/remote"
	"amsf/pkg/platform/audit"
	"amsf/pkg/requestcontext"
)

type Orchestrator struct {
	local   *local.Validator
	remote  remote.Validator
	enabled bool
	ops     audit.Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithOpsAudit records degraded remote results.
func WithOpsAudit(e audit.Emitter) Option {
	return func(o *Orchestrator) {
		o.ops = e
	}
}

// New wires both layers. The remote layer only runs when enabled is true and
// remoteV is non-nil.
func New(localV *local.Validator, remoteV remote.Validator, enabled bool, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:   localV,
		remote:  remoteV,
		enabled: enabled && remoteV != nil,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if enabled && remoteV == nil {
		o.logger.Warn("remote validation enabled without a client, running local checks only")
	}
	return o
}

func (o *Orchestrator) RemoteEnabled() bool {
	return o.enabled
}

// Validate always returns a combined result. instance is the rendered XBRL
// document sent to the remote service. The remote layer is skipped when it
// is disabled or instance is empty.
func (o *Orchestrator) Validate(ctx context.Context, sub *submodels.Submission, values submodels.Merged, instance []byte) models.Combined {
	localRes := o.local.Validate(sub, values)
	if o.metrics != nil {
		o.metrics.ObserveLocal(len(localRes.Errors), len(localRes.Warnings))
	}
	if !o.enabled {
		return models.Combine(localRes, nil)
	}
	if len(instance) == 0 {
		o.logger.WarnContext(ctx, "remote validation skipped, no rendered document",
			"submission_id", submissionID(sub),
		)
		return models.Combine(localRes, nil)
	}

	remoteRes := o.remote.Validate(ctx, instance)
	combined := models.Combine(localRes, &remoteRes)
	if combined.Degraded() {
		o.reportDegraded(ctx, sub, remoteRes)
	}
	o.logger.InfoContext(ctx, "submission validated",
		"submission_id", submissionID(sub),
		"valid", combined.Valid,
		"local_errors", len(localRes.Errors),
		"remote_errors", len(remoteRes.Errors),
		"degraded", combined.Degraded(),
	)
	return combined
}

func (o *Orchestrator) reportDegraded(ctx context.Context, sub *submodels.Submission, res models.Result) {
	o.logger.WarnContext(ctx, "remote validation degraded",
		"submission_id", submissionID(sub),
	)
	if o.ops == nil || sub == nil {
		return
	}
	detail := ""
	if len(res.Errors) > 0 {
		detail = res.Errors[0].Message
	}
	err := o.ops.Emit(ctx, audit.Event{
		Category:       audit.EventValidationDegraded.Category(),
		Timestamp:      requestcontext.Now(ctx),
		OrganizationID: sub.OrganizationID,
		SubmissionID:   sub.ID,
		ActorID:        requestcontext.UserID(ctx),
		Action:         string(audit.EventValidationDegraded),
		Detail:         detail,
		RequestID:      requestcontext.RequestID(ctx),
	})
	if err != nil {
		o.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(audit.EventValidationDegraded),
			"error", err,
		)
	}
}

func submissionID(sub *submodels.Submission) string {
	if sub == nil {
		return ""
	}
	return sub.ID.String()
}
