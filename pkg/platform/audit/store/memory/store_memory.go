package memory

import (
	"context"
	"sort"
	"sync"

	id "amsf/pkg/domain"
	audit "amsf/pkg/platform/audit"
)

// InMemoryStore keeps events per submission. Used by tests and the CLI.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.SubmissionID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.SubmissionID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.SubmissionID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SubmissionID] = append(s.events[event.SubmissionID], event)
	return nil
}

func (s *InMemoryStore) ListBySubmission(_ context.Context, submissionID id.SubmissionID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[submissionID]...), nil
}

// ListRecent returns the most recent N events across all submissions.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
