package orchestrator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	submodels "amsf/internal/submission/models"
	"amsf/internal/taxonomy"
	"amsf/internal/validation/local"
	"amsf/internal/validation/models"
	"amsf/internal/validation/remote/mocks"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/audit"
	"amsf/pkg/platform/audit/publisher"
	auditmemory "amsf/pkg/platform/audit/store/memory"
)

type OrchestratorSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	remote *mocks.MockValidator
	audit  *auditmemory.InMemoryStore
	local  *local.Validator
	sub    *submodels.Submission
	values submodels.Merged
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.remote = mocks.NewMockValidator(s.ctrl)
	s.audit = auditmemory.NewInMemoryStore()
	tax := taxonomy.MustDefault()
	s.local = local.New(tax)
	s.sub = &submodels.Submission{
		ID:             id.SubmissionID(uuid.New()),
		OrganizationID: id.OrganizationID(uuid.New()),
		SignatoryName:  "Jeanne Rossi",
		SignatoryTitle: "Gérante",
	}
	s.values = submodels.Merged{}
	for _, el := range tax.Elements() {
		var v submodels.Value
		switch {
		case el.IsDimensional():
			v = submodels.Dimensional(map[string]string{"MC": "0"})
		case el.ValueType == taxonomy.ValueBoolean:
			v = submodels.Scalar("Non")
		case el.ValueType == taxonomy.ValueText:
			v = submodels.Scalar("n/a")
		default:
			v = submodels.Scalar("0")
		}
		s.values[el.Code] = submodels.MergedValue{Value: v, Source: submodels.SourceCalculated}
	}
}

func (s *OrchestratorSuite) orchestrator(enabled bool) *Orchestrator {
	return New(s.local, s.remote, enabled, WithOpsAudit(publisher.NewPublisher(s.audit)))
}

func (s *OrchestratorSuite) TestRemoteDisabled() {
	s.remote.EXPECT().Validate(gomock.Any(), gomock.Any()).Times(0)

	res := s.orchestrator(false).Validate(context.Background(), s.sub, s.values, []byte("<xbrl/>"))

	s.True(res.Valid)
	s.Nil(res.Remote)
	s.False(res.Degraded())
}

func (s *OrchestratorSuite) TestNilRemoteDisablesLayer() {
	o := New(s.local, nil, true)
	s.False(o.RemoteEnabled())

	res := o.Validate(context.Background(), s.sub, s.values, nil)
	s.Nil(res.Remote)
}

func (s *OrchestratorSuite) TestEmptyDocumentSkipsRemote() {
	s.remote.EXPECT().Validate(gomock.Any(), gomock.Any()).Times(0)

	res := s.orchestrator(true).Validate(context.Background(), s.sub, s.values, nil)

	s.Nil(res.Remote)
	s.True(res.Valid)
}

func (s *OrchestratorSuite) TestCombination() {
	valid := models.NewResult()
	invalid := models.NewResult()
	invalid.AddError("calc_error", "a1101", "mismatch")

	s.Run("both valid", func() {
		s.remote.EXPECT().Validate(gomock.Any(), []byte("<xbrl/>")).Return(valid)

		res := s.orchestrator(true).Validate(context.Background(), s.sub, s.values, []byte("<xbrl/>"))

		s.True(res.Valid)
		s.Require().NotNil(res.Remote)
		s.True(res.Remote.Valid)
	})

	s.Run("remote invalid", func() {
		s.remote.EXPECT().Validate(gomock.Any(), gomock.Any()).Return(invalid)

		res := s.orchestrator(true).Validate(context.Background(), s.sub, s.values, []byte("<xbrl/>"))

		s.False(res.Valid)
		s.True(res.Local.Valid)
		s.False(res.Degraded())
	})

	s.Run("local invalid", func() {
		broken := submodels.Merged{}
		for k, v := range s.values {
			broken[k] = v
		}
		delete(broken, "a1101")
		s.remote.EXPECT().Validate(gomock.Any(), gomock.Any()).Return(valid)

		res := s.orchestrator(true).Validate(context.Background(), s.sub, broken, []byte("<xbrl/>"))

		s.False(res.Valid)
		s.True(res.Local.HasError(models.CodeMissingRequired, "a1101"))
	})
}

func (s *OrchestratorSuite) TestDegradedRemoteIsAudited() {
	s.remote.EXPECT().Validate(gomock.Any(), gomock.Any()).Return(models.Unavailable("validation service unavailable: timeout"))

	res := s.orchestrator(true).Validate(context.Background(), s.sub, s.values, []byte("<xbrl/>"))

	s.False(res.Valid)
	s.True(res.Degraded())

	events, err := s.audit.ListBySubmission(context.Background(), s.sub.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventValidationDegraded), events[0].Action)
	s.Equal(audit.CategoryOperations, events[0].Category)
	s.Contains(events[0].Detail, "timeout")
}
