package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amsf/pkg/domain"
)

func TestAttemptTransition(t *testing.T) {
	allowed := []struct {
		from  Status
		event Event
		to    Status
	}{
		{StatusDraft, EventStartReview, StatusInReview},
		{StatusInReview, EventValidate, StatusValidated},
		{StatusValidated, EventComplete, StatusCompleted},
		{StatusInReview, EventReject, StatusDraft},
		{StatusCompleted, EventReopen, StatusDraft},
	}
	for _, tt := range allowed {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := AttemptTransition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}

	t.Run("every other pair is rejected", func(t *testing.T) {
		ok := map[transition]bool{}
		for _, tt := range allowed {
			ok[transition{tt.from, tt.event}] = true
		}
		for _, from := range []Status{StatusDraft, StatusInReview, StatusValidated, StatusCompleted} {
			for _, event := range []Event{EventStartReview, EventValidate, EventComplete, EventReject, EventReopen} {
				if ok[transition{from, event}] {
					continue
				}
				got, err := AttemptTransition(from, event)
				require.ErrorIs(t, err, ErrInvalidTransition, "%s/%s", from, event)
				assert.Equal(t, from, got)

				var ite *InvalidTransitionError
				require.True(t, errors.As(err, &ite))
				assert.Equal(t, from, ite.From)
				assert.Equal(t, event, ite.Event)
			}
		}
	})

	t.Run("from draft only start_review succeeds", func(t *testing.T) {
		assert.Equal(t, []Event{EventStartReview}, AllowedEvents(StatusDraft))
		_, err := AttemptTransition(StatusDraft, EventValidate)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = AttemptTransition(StatusDraft, EventComplete)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestParse(t *testing.T) {
	s, err := ParseStatus("in_review")
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, s)
	_, err = ParseStatus("archived")
	assert.Error(t, err)

	e, err := ParseEvent("reopen")
	require.NoError(t, err)
	assert.Equal(t, EventReopen, e)
	_, err = ParseEvent("approve")
	assert.Error(t, err)
}

func newTestSubmission(t *testing.T) *Submission {
	t.Helper()
	sub, err := NewSubmission(id.SubmissionID(uuid.New()), id.OrganizationID(uuid.New()), 2024, "2025.1", time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return sub
}

func TestNewSubmission(t *testing.T) {
	org := id.OrganizationID(uuid.New())
	now := time.Now()

	_, err := NewSubmission(id.SubmissionID(uuid.New()), org, 2008, "2025.1", now)
	assert.Error(t, err)
	_, err = NewSubmission(id.SubmissionID(uuid.New()), org, 2100, "2025.1", now)
	assert.Error(t, err)
	_, err = NewSubmission(id.SubmissionID(uuid.New()), id.OrganizationID{}, 2024, "2025.1", now)
	assert.Error(t, err)
	_, err = NewSubmission(id.SubmissionID(uuid.New()), org, 2024, "", now)
	assert.Error(t, err)

	sub, err := NewSubmission(id.SubmissionID(uuid.New()), org, 2009, "2025.1", now)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, sub.Status)
	assert.True(t, sub.Editable())
}

func TestSubmission_Apply(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("full lifecycle stamps timestamps", func(t *testing.T) {
		sub := newTestSubmission(t)
		require.NoError(t, sub.Apply(EventStartReview, now))
		assert.True(t, sub.Editable())
		require.NoError(t, sub.Apply(EventValidate, now))
		require.NotNil(t, sub.ValidatedAt)
		assert.False(t, sub.Editable())
		require.NoError(t, sub.Apply(EventComplete, now.Add(time.Hour)))
		require.NotNil(t, sub.CompletedAt)
		assert.Equal(t, StatusCompleted, sub.Status)
	})

	t.Run("reopen clears generation and counts", func(t *testing.T) {
		sub := newTestSubmission(t)
		require.NoError(t, sub.Apply(EventStartReview, now))
		require.NoError(t, sub.Apply(EventValidate, now))
		require.NoError(t, sub.Apply(EventComplete, now))
		sub.MarkGenerated(now)
		sub.AcknowledgeUnvalidated(id.UserID(uuid.New()), now)

		require.NoError(t, sub.Apply(EventReopen, now))
		assert.Equal(t, StatusDraft, sub.Status)
		assert.Equal(t, 1, sub.ReopenedCount)
		assert.Nil(t, sub.GeneratedAt)
		assert.Nil(t, sub.ValidatedAt)
		assert.Nil(t, sub.CompletedAt)
		assert.False(t, sub.DownloadedUnvalidated)
	})

	t.Run("failed transition leaves status unchanged", func(t *testing.T) {
		sub := newTestSubmission(t)
		err := sub.Apply(EventComplete, now)
		require.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusDraft, sub.Status)
		assert.Nil(t, sub.CompletedAt)
	})
}

func TestSubmission_Lock(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 30 * time.Minute
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	sub := newTestSubmission(t)
	assert.False(t, sub.IsLocked(now, ttl))
	assert.True(t, sub.CanLock(alice, now, ttl))

	sub.Lock(alice, now)
	assert.True(t, sub.LockedByUser(alice, now, ttl))
	assert.False(t, sub.LockedByUser(bob, now, ttl))
	assert.True(t, sub.LockedByOther(bob, now, ttl))
	assert.True(t, sub.CanLock(alice, now, ttl))
	assert.False(t, sub.CanLock(bob, now.Add(29*time.Minute), ttl))

	t.Run("expired lock can be taken over", func(t *testing.T) {
		later := now.Add(ttl)
		assert.False(t, sub.IsLocked(later, ttl))
		assert.True(t, sub.CanLock(bob, later, ttl))
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		assert.True(t, sub.IsLocked(now.Add(1000*time.Hour), 0))
	})

	sub.Unlock()
	assert.False(t, sub.IsLocked(now, ttl))
}

func TestSubmission_Sign(t *testing.T) {
	sub := newTestSubmission(t)
	assert.False(t, sub.IsSigned())
	assert.Error(t, sub.Sign("  ", "Director"))
	require.NoError(t, sub.Sign(" Jane Roux ", "Managing Director"))
	assert.Equal(t, "Jane Roux", sub.SignatoryName)
	assert.True(t, sub.IsSigned())
}
