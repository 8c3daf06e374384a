//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"amsf/internal/submission/models"
	"amsf/internal/submission/store/postgres"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
	"amsf/pkg/testutil/containers"
)

type SubmissionPostgresSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
	ctx   context.Context
	now   time.Time
}

func TestSubmissionPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SubmissionPostgresSuite))
}

func (s *SubmissionPostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), "../../../../migrations")
	s.store = postgres.New(s.pg.Pool)
	s.ctx = context.Background()
	s.now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
}

func (s *SubmissionPostgresSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "answers", "submission_values", "submissions"))
}

func (s *SubmissionPostgresSuite) newSubmission(org id.OrganizationID, year int) *models.Submission {
	sub, err := models.NewSubmission(id.SubmissionID(uuid.New()), org, year, "2025.1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, sub))
	return sub
}

func (s *SubmissionPostgresSuite) TestCreateAndFind() {
	org := id.OrganizationID(uuid.New())
	sub := s.newSubmission(org, 2024)

	found, err := s.store.FindByOrgAndYear(s.ctx, org, 2024)
	s.Require().NoError(err)
	s.Equal(sub.ID, found.ID)
	s.Equal(models.StatusDraft, found.Status)
	s.Nil(found.LockedBy)

	dup, _ := models.NewSubmission(id.SubmissionID(uuid.New()), org, 2024, "2025.1", s.now)
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrAlreadyUsed)

	_, err = s.store.FindByID(s.ctx, id.SubmissionID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SubmissionPostgresSuite) TestExecuteBumpsVersion() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)

	updated, err := s.store.Execute(s.ctx, sub.ID, nil, func(m *models.Submission) {
		s.Require().NoError(m.Apply(models.EventStartReview, s.now))
	})
	s.Require().NoError(err)
	s.Equal(2, updated.Version)

	found, err := s.store.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInReview, found.Status)
	s.Equal(2, found.Version)
}

func (s *SubmissionPostgresSuite) TestConditionalLock() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())
	ttl := 30 * time.Minute

	locked, err := s.store.AcquireLock(s.ctx, sub.ID, alice, s.now, ttl)
	s.Require().NoError(err)
	s.Equal(alice, *locked.LockedBy)

	_, err = s.store.AcquireLock(s.ctx, sub.ID, bob, s.now.Add(time.Minute), ttl)
	s.ErrorIs(err, sentinel.ErrLocked)

	locked, err = s.store.AcquireLock(s.ctx, sub.ID, bob, s.now.Add(time.Hour), ttl)
	s.Require().NoError(err)
	s.Equal(bob, *locked.LockedBy)

	s.ErrorIs(s.store.ReleaseLock(s.ctx, sub.ID, alice), sentinel.ErrLocked)
	s.Require().NoError(s.store.ReleaseLock(s.ctx, sub.ID, bob))

	_, err = s.store.AcquireLock(s.ctx, id.SubmissionID(uuid.New()), bob, s.now, ttl)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SubmissionPostgresSuite) TestValuesRoundTrip() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)
	user := id.UserID(uuid.New())

	override := models.SubmissionValue{SubmissionID: sub.ID, ElementName: "a1101", Value: models.Scalar("3"), Source: models.SourceCalculated, UpdatedAt: s.now}
	override.ApplyOverride(models.Scalar("4"), user, s.now)

	s.Require().NoError(s.store.SaveValues(s.ctx, []models.SubmissionValue{
		override,
		{SubmissionID: sub.ID, ElementName: "a1110", Value: models.Dimensional(map[string]string{"FR": "2", "MC": "1"}), Source: models.SourceCalculated, UpdatedAt: s.now},
	}))

	values, err := s.store.Values(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Len(values, 2)

	s.True(values[0].Overridden)
	s.Equal("4", values[0].Value.Text())
	s.Require().NotNil(values[0].PreviousValue)
	s.Equal("3", values[0].PreviousValue.Text())
	s.Equal(user, *values[0].OverriddenBy)

	s.True(values[1].Value.IsDimensional())
	s.Equal(map[string]string{"FR": "2", "MC": "1"}, values[1].Value.Dims())

	s.Require().NoError(s.store.SaveAnswer(s.ctx, models.Answer{SubmissionID: sub.ID, XbrlID: "a1101", Value: "999", UpdatedBy: user, UpdatedAt: s.now}))
	answers, err := s.store.Answers(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Len(answers, 1)
	s.Equal("999", answers[0].Value)
}

func (s *SubmissionPostgresSuite) TestWithinTxRollsBack() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)
	boom := errors.New("calculation failed")

	err := s.store.WithinTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.SaveValues(ctx, []models.SubmissionValue{
			{SubmissionID: sub.ID, ElementName: "a1101", Value: models.Scalar("3"), Source: models.SourceCalculated, UpdatedAt: s.now},
		}))
		return boom
	})
	s.ErrorIs(err, boom)

	values, err := s.store.Values(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Empty(values)
}
