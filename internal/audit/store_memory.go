package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore backs unit tests and dev mode. Events are retained so tests
// can assert on the emitted trail.
type InMemoryStore struct {
	mu        sync.Mutex
	events    []Event
	published map[uuid.UUID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[uuid.UUID]time.Time)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListUnpublished(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if _, done := s.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, eventIDs []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eid := range eventIDs {
		s.published[eid] = at
	}
	return nil
}

// Events returns everything appended so far, for test assertions.
func (s *InMemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
