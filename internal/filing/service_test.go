package filing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"amsf/internal/artifact"
	"amsf/internal/comparison"
	crm "amsf/internal/crm/models"
	crmmemory "amsf/internal/crm/store/memory"
	"amsf/internal/submission/models"
	"amsf/internal/submission/service"
	"amsf/internal/submission/store/memory"
	"amsf/internal/survey/engine"
	"amsf/internal/taxonomy"
	"amsf/internal/validation/local"
	vmodels "amsf/internal/validation/models"
	"amsf/internal/validation/orchestrator"
	"amsf/internal/xbrl"
	id "amsf/pkg/domain"
	dErrors "amsf/pkg/domain-errors"
	"amsf/pkg/platform/audit"
	"amsf/pkg/platform/audit/publishers/compliance"
	auditmemory "amsf/pkg/platform/audit/store/memory"
	apptest "amsf/pkg/testutil"
)

// stubRemote answers every document with the same result.
type stubRemote struct {
	result vmodels.Result
	calls  int
}

func (r *stubRemote) Validate(context.Context, []byte) vmodels.Result {
	r.calls++
	return r.result
}

func (r *stubRemote) Health(context.Context) error { return nil }

type FilingServiceSuite struct {
	suite.Suite
	ctx         context.Context
	dir         string
	tax         *taxonomy.Taxonomy
	crm         *crmmemory.Store
	audit       *auditmemory.InMemoryStore
	submissions *service.Service
	org         id.OrganizationID
	user        id.UserID
}

func TestFilingServiceSuite(t *testing.T) {
	suite.Run(t, new(FilingServiceSuite))
}

func (s *FilingServiceSuite) SetupTest() {
	s.ctx = apptest.FixedTime(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	s.dir = s.T().TempDir()
	s.tax = taxonomy.MustDefault()
	s.org = id.OrganizationID(uuid.New())
	s.user = id.UserID(uuid.New())

	s.crm = crmmemory.New()
	s.crm.PutDataset(crm.Dataset{
		Organization: crm.Organization{ID: s.org, Name: "Agence du Port", RegistryNumber: "12S03456"},
	})
	s.crm.AddClient(crm.Client{ID: id.ClientID(uuid.New()), OrganizationID: s.org, Type: crm.ClientNaturalPerson, Nationality: "FR", RiskLevel: crm.RiskLow})

	store := memory.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	eng, err := engine.New(s.crm, store, s.tax)
	s.Require().NoError(err)
	s.submissions = service.New(store, eng, s.tax, service.WithComplianceAudit(compliance.New(s.audit)))
}

func (s *FilingServiceSuite) filing(remote *stubRemote) *Service {
	files, err := artifact.NewFileStore(s.dir)
	s.Require().NoError(err)
	var o *orchestrator.Orchestrator
	if remote != nil {
		o = orchestrator.New(local.New(s.tax), remote, true)
	} else {
		o = orchestrator.New(local.New(s.tax), nil, false)
	}
	return New(s.submissions, s.crm, s.tax, xbrl.New(s.tax, xbrl.Options{Strict: true}), o,
		WithArtifactStore(files))
}

func (s *FilingServiceSuite) create() *models.Submission {
	sub, err := s.submissions.Create(s.ctx, s.org, 2024, s.user)
	s.Require().NoError(err)
	return sub
}

func (s *FilingServiceSuite) inReview() *models.Submission {
	sub := s.create()
	sub, err := s.submissions.StartReview(s.ctx, sub.ID, s.user)
	s.Require().NoError(err)
	return sub
}

func (s *FilingServiceSuite) actions(subID id.SubmissionID) []string {
	events, err := s.audit.ListBySubmission(s.ctx, subID)
	s.Require().NoError(err)
	var out []string
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *FilingServiceSuite) TestRender() {
	sub := s.create()
	f := s.filing(nil)

	s.Run("xbrl", func() {
		doc, err := f.Render(s.ctx, sub.ID, FormatXBRL)
		s.Require().NoError(err)
		s.Equal("amsf_2024_12S03456.xml", doc.Filename)
		s.Equal(artifact.ContentTypeXML, doc.ContentType)
		s.Contains(string(doc.Body), ">12S03456</xbrli:identifier>")
		s.Empty(doc.Location)
	})

	s.Run("markdown", func() {
		doc, err := f.Render(s.ctx, sub.ID, FormatMarkdown)
		s.Require().NoError(err)
		s.Equal("amsf_2024_12S03456.md", doc.Filename)
		s.True(strings.HasPrefix(string(doc.Body), "# Déclaration AMSF 2024 : Agence du Port"))
	})

	s.Run("strict mode rejects malformed overrides", func() {
		_, err := s.submissions.SaveAnswer(s.ctx, sub.ID, s.user, "a1207", "not-a-number")
		s.Require().NoError(err)

		_, err = f.Render(s.ctx, sub.ID, FormatXBRL)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *FilingServiceSuite) TestValidate() {
	s.Run("draft is checked but not advanced", func() {
		sub := s.create()

		out, err := s.filing(nil).Validate(s.ctx, sub.ID, s.user)
		s.Require().NoError(err)
		s.True(out.Result.Valid)
		s.False(out.Advanced)
		s.Equal(models.StatusDraft, out.Submission.Status)
	})
}

func (s *FilingServiceSuite) TestValidateAdvancesReview() {
	sub := s.inReview()

	out, err := s.filing(nil).Validate(s.ctx, sub.ID, s.user)
	s.Require().NoError(err)

	s.True(out.Result.Valid)
	s.Nil(out.Result.Remote)
	s.True(out.Result.Local.HasWarning(vmodels.CodeMissingSignatory, ""))
	s.True(out.Advanced)
	s.Equal(models.StatusValidated, out.Submission.Status)
}

func (s *FilingServiceSuite) TestValidateInconsistentTotals() {
	sub := s.inReview()
	_, err := s.submissions.OverrideValue(s.ctx, sub.ID, s.user, "a1101", models.Scalar("99"))
	s.Require().NoError(err)

	out, err := s.filing(nil).Validate(s.ctx, sub.ID, s.user)
	s.Require().NoError(err)

	s.False(out.Result.Valid)
	s.True(out.Result.Local.HasError(vmodels.CodeInconsistentTotal, "a1101"))
	s.False(out.Advanced)
	s.Equal(models.StatusInReview, out.Submission.Status)
}

func (s *FilingServiceSuite) TestValidateMalformedValueSkipsRemote() {
	sub := s.inReview()
	_, err := s.submissions.SaveAnswer(s.ctx, sub.ID, s.user, "a1207", "not-a-number")
	s.Require().NoError(err)
	remote := &stubRemote{result: vmodels.NewResult()}

	out, err := s.filing(remote).Validate(s.ctx, sub.ID, s.user)
	s.Require().NoError(err)

	s.False(out.Result.Valid)
	s.Nil(out.Result.Remote)
	s.Zero(remote.calls)
	s.True(out.Result.Local.HasError(vmodels.CodeInvalidType, "a1207"))
}

func (s *FilingServiceSuite) TestDegradedRemoteAllowsAcknowledgedExport() {
	sub := s.inReview()
	remote := &stubRemote{result: vmodels.Unavailable("validation service unavailable: timeout")}
	f := s.filing(remote)

	out, err := f.Validate(s.ctx, sub.ID, s.user)
	s.Require().NoError(err)
	s.True(out.Result.Degraded())
	s.False(out.Result.Valid)
	s.False(out.Advanced)
	s.Equal(1, remote.calls)

	_, err = f.Export(s.ctx, sub.ID, s.user, FormatXBRL, false)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	doc, err := f.Export(s.ctx, sub.ID, s.user, FormatXBRL, true)
	s.Require().NoError(err)
	s.Equal(filepath.Join(s.dir, s.org.String(), "2024", "amsf_2024_12S03456.xml"), doc.Location)
	stored, err := os.ReadFile(doc.Location)
	s.Require().NoError(err)
	s.Equal(doc.Body, stored)

	got, err := s.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.True(got.DownloadedUnvalidated)
	s.Equal(&s.user, got.UnvalidatedAcknowledgedBy)
	s.NotNil(got.GeneratedAt)
	s.Contains(s.actions(sub.ID), string(audit.EventDownloadedUnvalidated))
}

func (s *FilingServiceSuite) TestExportValidatedNeedsNoAcknowledgement() {
	sub := s.inReview()
	f := s.filing(&stubRemote{result: vmodels.NewResult()})
	out, err := f.Validate(s.ctx, sub.ID, s.user)
	s.Require().NoError(err)
	s.Require().True(out.Advanced)

	doc, err := f.Export(s.ctx, sub.ID, s.user, FormatMarkdown, false)
	s.Require().NoError(err)
	s.Equal("amsf_2024_12S03456.md", doc.Filename)

	got, err := s.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.False(got.DownloadedUnvalidated)
	s.NotContains(s.actions(sub.ID), string(audit.EventDownloadedUnvalidated))
}

func (s *FilingServiceSuite) TestCompare() {
	s.Run("without comparator", func() {
		_, err := s.filing(nil).Compare(s.ctx, s.create().ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("against the previous year", func() {
		prev, err := s.submissions.Create(s.ctx, s.org, 2023, s.user)
		s.Require().NoError(err)
		_, err = s.submissions.OverrideValue(s.ctx, prev.ID, s.user, "a1101", models.Scalar("4"))
		s.Require().NoError(err)
		cur, err := s.submissions.FindByOrgAndYear(s.ctx, s.org, 2024)
		s.Require().NoError(err)

		f := New(s.submissions, s.crm, s.tax, xbrl.New(s.tax, xbrl.Options{}), orchestrator.New(local.New(s.tax), nil, false),
			WithComparator(comparison.New(s.submissions, s.tax)))
		cmp, err := f.Compare(s.ctx, cur.ID)
		s.Require().NoError(err)
		s.False(cmp.FirstSubmission())
		change, ok := cmp.Change("a1101")
		s.Require().True(ok)
		s.Require().NotNil(change.ChangePercent)
		s.InDelta(-75.0, *change.ChangePercent, 0.001)
		s.Contains(cmp.SignificantChanges(), "a1101")
	})

	s.Run("unknown submission", func() {
		f := New(s.submissions, s.crm, s.tax, xbrl.New(s.tax, xbrl.Options{}), nil,
			WithComparator(comparison.New(s.submissions, s.tax)))
		_, err := f.Compare(s.ctx, id.SubmissionID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": FormatXBRL, "xbrl": FormatXBRL, "markdown": FormatMarkdown} {
		got, err := ParseFormat(raw)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
