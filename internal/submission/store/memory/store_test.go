package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"amsf/internal/submission/models"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
)

type SubmissionStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *SubmissionStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
}

func TestSubmissionStoreSuite(t *testing.T) {
	suite.Run(t, new(SubmissionStoreSuite))
}

func (s *SubmissionStoreSuite) newSubmission(org id.OrganizationID, year int) *models.Submission {
	sub, err := models.NewSubmission(id.SubmissionID(uuid.New()), org, year, "2025.1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, sub))
	return sub
}

func (s *SubmissionStoreSuite) TestCreateAndFind() {
	org := id.OrganizationID(uuid.New())

	s.Run("finds by id and by organization year", func() {
		sub := s.newSubmission(org, 2024)

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(2024, found.Year)

		found, err = s.store.FindByOrgAndYear(s.ctx, org, 2024)
		s.Require().NoError(err)
		s.Equal(sub.ID, found.ID)
	})

	s.Run("organization and year are unique", func() {
		dup, err := models.NewSubmission(id.SubmissionID(uuid.New()), org, 2024, "2025.1", s.now)
		s.Require().NoError(err)
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown ids are not found", func() {
		_, err := s.store.FindByID(s.ctx, id.SubmissionID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByOrgAndYear(s.ctx, org, 2019)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("lists newest year first", func() {
		s.newSubmission(org, 2022)
		s.newSubmission(org, 2023)
		list, err := s.store.ListByOrganization(s.ctx, org)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		s.Equal([]int{2024, 2023, 2022}, []int{list[0].Year, list[1].Year, list[2].Year})
	})
}

func (s *SubmissionStoreSuite) TestExecute() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)

	s.Run("mutates and bumps version", func() {
		updated, err := s.store.Execute(s.ctx, sub.ID, nil, func(m *models.Submission) {
			m.ReopenedCount = 7
		})
		s.Require().NoError(err)
		s.Equal(2, updated.Version)

		found, _ := s.store.FindByID(s.ctx, sub.ID)
		s.Equal(7, found.ReopenedCount)
	})

	s.Run("validation failure leaves the record alone", func() {
		boom := errors.New("no")
		_, err := s.store.Execute(s.ctx, sub.ID, func(*models.Submission) error { return boom }, func(m *models.Submission) {
			m.ReopenedCount = 99
		})
		s.ErrorIs(err, boom)
		found, _ := s.store.FindByID(s.ctx, sub.ID)
		s.Equal(7, found.ReopenedCount)
	})
}

func (s *SubmissionStoreSuite) TestLocking() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())
	ttl := 30 * time.Minute

	_, err := s.store.AcquireLock(s.ctx, sub.ID, alice, s.now, ttl)
	s.Require().NoError(err)

	s.Run("same user reacquires", func() {
		_, err := s.store.AcquireLock(s.ctx, sub.ID, alice, s.now.Add(time.Minute), ttl)
		s.NoError(err)
	})

	s.Run("other user is refused while the lock is live", func() {
		_, err := s.store.AcquireLock(s.ctx, sub.ID, bob, s.now.Add(10*time.Minute), ttl)
		s.ErrorIs(err, sentinel.ErrLocked)
		s.ErrorIs(s.store.ReleaseLock(s.ctx, sub.ID, bob), sentinel.ErrLocked)
	})

	s.Run("expired lock is taken over", func() {
		locked, err := s.store.AcquireLock(s.ctx, sub.ID, bob, s.now.Add(2*ttl), ttl)
		s.Require().NoError(err)
		s.Equal(bob, *locked.LockedBy)
	})

	s.Run("holder releases", func() {
		s.Require().NoError(s.store.ReleaseLock(s.ctx, sub.ID, bob))
		found, _ := s.store.FindByID(s.ctx, sub.ID)
		s.Nil(found.LockedBy)
		s.NoError(s.store.ReleaseLock(s.ctx, sub.ID, alice))
	})
}

func (s *SubmissionStoreSuite) TestValuesAndAnswers() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)

	s.Require().NoError(s.store.SaveValues(s.ctx, []models.SubmissionValue{
		{SubmissionID: sub.ID, ElementName: "a1201", Value: models.Scalar("4"), Source: models.SourceCalculated},
		{SubmissionID: sub.ID, ElementName: "a1101", Value: models.Scalar("3"), Source: models.SourceCalculated},
	}))
	s.Require().NoError(s.store.SaveAnswer(s.ctx, models.Answer{SubmissionID: sub.ID, XbrlID: "am1701", Value: "RAS"}))

	values, err := s.store.Values(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Len(values, 2)
	s.Equal("a1101", values[0].ElementName)

	v, err := s.store.Value(s.ctx, sub.ID, "a1201")
	s.Require().NoError(err)
	s.Equal("4", v.Value.Text())

	answers, err := s.store.Answers(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Len(answers, 1)

	s.Run("writes for unknown submissions fail", func() {
		err := s.store.SaveValues(s.ctx, []models.SubmissionValue{{SubmissionID: id.SubmissionID(uuid.New()), ElementName: "a1101"}})
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.store.SaveAnswer(s.ctx, models.Answer{SubmissionID: id.SubmissionID(uuid.New())}), sentinel.ErrNotFound)
	})
}

func (s *SubmissionStoreSuite) TestWithinTxRollsBack() {
	sub := s.newSubmission(id.OrganizationID(uuid.New()), 2024)
	boom := errors.New("calculation failed")

	err := s.store.WithinTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.SaveValues(ctx, []models.SubmissionValue{
			{SubmissionID: sub.ID, ElementName: "a1101", Value: models.Scalar("3")},
		}))
		return boom
	})
	s.ErrorIs(err, boom)

	values, err := s.store.Values(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Empty(values)

	s.Run("nested calls join the outer transaction", func() {
		err := s.store.WithinTx(s.ctx, func(ctx context.Context) error {
			return s.store.WithinTx(ctx, func(ctx context.Context) error {
				return s.store.SaveValues(ctx, []models.SubmissionValue{{SubmissionID: sub.ID, ElementName: "a1101", Value: models.Scalar("3")}})
			})
		})
		s.Require().NoError(err)
		values, _ := s.store.Values(s.ctx, sub.ID)
		s.Len(values, 1)
	})
}
