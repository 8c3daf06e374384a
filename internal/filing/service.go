// Package filing produces the artifacts of a submission: it renders the XBRL
// instance and the Markdown report, runs validation and gates downloads of
// documents that were never validated.
package filing

import (
	"context"
	"errors"
	"log/slog"

	"amsf/internal/artifact"
	"amsf/internal/comparison"
	crmmodels "amsf/internal/crm/models"
	"amsf/internal/report"
	"amsf/internal/submission/models"
	"amsf/internal/taxonomy"
	vmodels "amsf/internal/validation/models"
	"amsf/internal/xbrl"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
)

type Format string

const (
	FormatXBRL     Format = "xbrl"
	FormatMarkdown Format = "markdown"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatXBRL, "":
		return FormatXBRL, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "format must be xbrl or markdown")
}

// Submissions is the slice of the submission service used here.
type Submissions interface {
	Get(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	MergedAnswers(ctx context.Context, submissionID id.SubmissionID) (models.Merged, error)
	Validate(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error)
	MarkGenerated(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error)
	AcknowledgeUnvalidatedDownload(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*models.Submission, error)
}

type Organizations interface {
	Organization(ctx context.Context, orgID id.OrganizationID) (*crmmodels.Organization, error)
}

type Validator interface {
	Validate(ctx context.Context, sub *models.Submission, values models.Merged, instance []byte) vmodels.Combined
}

type Comparator interface {
	Compare(ctx context.Context, sub *models.Submission) (*comparison.Comparison, error)
}

// Document is a rendered artifact. Location is set once it is stored.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
	Location    string
}

// ValidationOutcome carries the combined result and the submission after
// any status change it caused.
type ValidationOutcome struct {
	Result     vmodels.Combined   `json:"result"`
	Submission *models.Submission `json:"submission"`
	Advanced   bool               `json:"advanced"`
}

type Service struct {
	submissions Submissions
	orgs        Organizations
	tax         *taxonomy.Taxonomy
	renderer    *xbrl.Renderer
	validator   Validator
	artifacts   artifact.Store
	comparator  Comparator
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithArtifactStore keeps a copy of every exported document.
func WithArtifactStore(store artifact.Store) Option {
	return func(s *Service) {
		s.artifacts = store
	}
}

// WithComparator enables year-over-year comparison.
func WithComparator(c Comparator) Option {
	return func(s *Service) {
		s.comparator = c
	}
}

func New(submissions Submissions, orgs Organizations, tax *taxonomy.Taxonomy, renderer *xbrl.Renderer, validator Validator, opts ...Option) *Service {
	s := &Service{
		submissions: submissions,
		orgs:        orgs,
		tax:         tax,
		renderer:    renderer,
		validator:   validator,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type filingInput struct {
	sub    *models.Submission
	org    *crmmodels.Organization
	values models.Merged
}

func (s *Service) load(ctx context.Context, submissionID id.SubmissionID) (*filingInput, error) {
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	values, err := s.submissions.MergedAnswers(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.Organization(ctx, sub.OrganizationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "organization not found")
	}
	return &filingInput{sub: sub, org: org, values: values}, nil
}

// Render produces a document without recording anything.
func (s *Service) Render(ctx context.Context, submissionID id.SubmissionID, format Format) (*Document, error) {
	in, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, in, format)
}

func (s *Service) render(ctx context.Context, in *filingInput, format Format) (*Document, error) {
	switch format {
	case FormatMarkdown:
		body, err := report.Render(s.tax, report.Header{
			OrganizationName: in.org.Name,
			Registry:         in.org.RegistryNumber,
			Year:             in.sub.Year,
			Status:           in.sub.Status,
			TaxonomyVersion:  in.sub.TaxonomyVersion,
		}, in.values)
		if err != nil {
			return nil, renderErr(err)
		}
		return &Document{
			Filename:    report.Filename(in.sub.Year, in.org.RegistryNumber),
			ContentType: artifact.ContentTypeMarkdown,
			Body:        body,
		}, nil
	default:
		body, err := s.renderer.Render(ctx, xbrl.Entity{Identifier: in.org.RegistryNumber, Year: in.sub.Year}, in.values)
		if err != nil {
			return nil, renderErr(err)
		}
		return &Document{
			Filename:    xbrl.Filename(in.sub.Year, in.org.RegistryNumber),
			ContentType: artifact.ContentTypeXML,
			Body:        body,
		}, nil
	}
}

func renderErr(err error) error {
	var dataErr *xbrl.DataError
	if errors.As(err, &dataErr) {
		return dErrors.Wrap(err, dErrors.CodeValidation, dataErr.Error())
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render document")
}

// Validate runs both validation layers. A valid in_review submission is
// advanced to validated.
func (s *Service) Validate(ctx context.Context, submissionID id.SubmissionID, user id.UserID) (*ValidationOutcome, error) {
	in, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	instance, err := s.renderer.Render(ctx, xbrl.Entity{Identifier: in.org.RegistryNumber, Year: in.sub.Year}, in.values)
	if err != nil {
		var dataErr *xbrl.DataError
		if !errors.As(err, &dataErr) {
			return nil, renderErr(err)
		}
		// The local layer reports the same malformed value.
		s.logger.WarnContext(ctx, "document not rendered for validation",
			"submission_id", submissionID.String(),
			"element", dataErr.Element,
		)
		instance = nil
	}

	out := &ValidationOutcome{Submission: in.sub}
	out.Result = s.validator.Validate(ctx, in.sub, in.values, instance)
	if out.Result.Valid && in.sub.Status == models.StatusInReview {
		sub, err := s.submissions.Validate(ctx, submissionID, user)
		if err != nil {
			return nil, err
		}
		out.Submission = sub
		out.Advanced = true
	}
	return out, nil
}

// Export renders and stores a document. Submissions that are not validated
// or completed are only exported when the caller acknowledges it, which is
// recorded for audit.
func (s *Service) Export(ctx context.Context, submissionID id.SubmissionID, user id.UserID, format Format, acknowledgeUnvalidated bool) (*Document, error) {
	in, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	unvalidated := !in.sub.Status.IsFrozen()
	if unvalidated && !acknowledgeUnvalidated {
		return nil, dErrors.New(dErrors.CodePreconditionFailed,
			"submission is not validated; set acknowledge_unvalidated to download anyway")
	}

	doc, err := s.render(ctx, in, format)
	if err != nil {
		return nil, err
	}
	if unvalidated {
		if _, err := s.submissions.AcknowledgeUnvalidatedDownload(ctx, submissionID, user); err != nil {
			return nil, err
		}
	}
	if s.artifacts != nil {
		key := artifact.Key(in.sub.OrganizationID, in.sub.Year, doc.Filename)
		loc, err := s.artifacts.Put(ctx, key, doc.ContentType, doc.Body)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store artifact")
		}
		doc.Location = loc
	}
	if format == FormatXBRL {
		if _, err := s.submissions.MarkGenerated(ctx, submissionID, user); err != nil {
			return nil, err
		}
	}
	s.logger.InfoContext(ctx, "artifact exported",
		"submission_id", submissionID.String(),
		"format", string(format),
		"filename", doc.Filename,
		"location", doc.Location,
		"unvalidated", unvalidated,
	)
	return doc, nil
}

// Compare diffs the submission against the organization's previous year.
func (s *Service) Compare(ctx context.Context, submissionID id.SubmissionID) (*comparison.Comparison, error) {
	if s.comparator == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "comparison is not configured")
	}
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	cmp, err := s.comparator.Compare(ctx, sub)
	if err != nil {
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compare submissions")
	}
	return cmp, nil
}
