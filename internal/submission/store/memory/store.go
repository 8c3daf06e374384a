// Package memory keeps submissions, values and answers in process memory.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"amsf/internal/submission/models"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
)

type valueKey struct {
	submission id.SubmissionID
	element    string
}

type orgYear struct {
	org  id.OrganizationID
	year int
}

type state struct {
	submissions map[id.SubmissionID]models.Submission
	byOrgYear   map[orgYear]id.SubmissionID
	values      map[valueKey]models.SubmissionValue
	answers     map[valueKey]models.Answer
}

func (st *state) clone() state {
	return state{
		submissions: maps.Clone(st.submissions),
		byOrgYear:   maps.Clone(st.byOrgYear),
		values:      maps.Clone(st.values),
		answers:     maps.Clone(st.answers),
	}
}

// InMemory implements the submission store. WithinTx serialises transactions
// and restores the previous state when the callback fails.
type InMemory struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
}

func NewInMemory() *InMemory {
	return &InMemory{st: state{
		submissions: make(map[id.SubmissionID]models.Submission),
		byOrgYear:   make(map[orgYear]id.SubmissionID),
		values:      make(map[valueKey]models.SubmissionValue),
		answers:     make(map[valueKey]models.Answer),
	}}
}

type txKey struct{}

func (s *InMemory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemory) Create(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := orgYear{sub.OrganizationID, sub.Year}
	if _, taken := s.st.byOrgYear[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.st.submissions[sub.ID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.st.submissions[sub.ID] = *sub
	s.st.byOrgYear[key] = sub.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.st.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sub, nil
}

func (s *InMemory) FindByOrgAndYear(_ context.Context, orgID id.OrganizationID, year int) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subID, ok := s.st.byOrgYear[orgYear{orgID, year}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	sub := s.st.submissions[subID]
	return &sub, nil
}

// ListByOrganization returns the organization's submissions, newest year first.
func (s *InMemory) ListByOrganization(_ context.Context, orgID id.OrganizationID) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Submission
	for _, sub := range s.st.submissions {
		if sub.OrganizationID == orgID {
			out = append(out, &sub)
		}
	}
	slices.SortFunc(out, func(a, b *models.Submission) int { return b.Year - a.Year })
	return out, nil
}

// Execute validates and mutates a submission atomically and bumps its version.
func (s *InMemory) Execute(_ context.Context, submissionID id.SubmissionID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(&sub); err != nil {
			return nil, err
		}
	}
	mutate(&sub)
	sub.Version++
	s.st.submissions[submissionID] = sub
	return &sub, nil
}

// AcquireLock takes the lock when it is free, expired, or already held by user.
func (s *InMemory) AcquireLock(_ context.Context, submissionID id.SubmissionID, user id.UserID, now time.Time, ttl time.Duration) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !sub.CanLock(user, now, ttl) {
		return nil, sentinel.ErrLocked
	}
	sub.Lock(user, now)
	sub.Version++
	s.st.submissions[submissionID] = sub
	return &sub, nil
}

// ReleaseLock clears a lock held by user. Releasing a free lock is a no-op.
func (s *InMemory) ReleaseLock(_ context.Context, submissionID id.SubmissionID, user id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.st.submissions[submissionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sub.LockedBy == nil {
		return nil
	}
	if *sub.LockedBy != user {
		return sentinel.ErrLocked
	}
	sub.Unlock()
	sub.Version++
	s.st.submissions[submissionID] = sub
	return nil
}

// Values returns the stored values ordered by element code.
func (s *InMemory) Values(_ context.Context, submissionID id.SubmissionID) ([]models.SubmissionValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SubmissionValue
	for k, v := range s.st.values {
		if k.submission == submissionID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b models.SubmissionValue) int {
		return strings.Compare(a.ElementName, b.ElementName)
	})
	return out, nil
}

func (s *InMemory) Value(_ context.Context, submissionID id.SubmissionID, element string) (*models.SubmissionValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.st.values[valueKey{submissionID, element}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

// SaveValues inserts or replaces the given values.
func (s *InMemory) SaveValues(_ context.Context, values []models.SubmissionValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		if _, ok := s.st.submissions[v.SubmissionID]; !ok {
			return sentinel.ErrNotFound
		}
	}
	for _, v := range values {
		s.st.values[valueKey{v.SubmissionID, v.ElementName}] = v
	}
	return nil
}

func (s *InMemory) Answers(_ context.Context, submissionID id.SubmissionID) ([]models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Answer
	for k, a := range s.st.answers {
		if k.submission == submissionID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b models.Answer) int {
		return strings.Compare(a.XbrlID, b.XbrlID)
	})
	return out, nil
}

func (s *InMemory) SaveAnswer(_ context.Context, a models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.submissions[a.SubmissionID]; !ok {
		return sentinel.ErrNotFound
	}
	s.st.answers[valueKey{a.SubmissionID, a.XbrlID}] = a
	return nil
}
