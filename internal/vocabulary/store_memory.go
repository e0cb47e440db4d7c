package vocabulary

import (
	"context"
	"sort"
	"sync"

	"terrasync/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and dev mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	vocabs map[string]Vocabulary
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{vocabs: make(map[string]Vocabulary)}
}

func (s *InMemoryStore) Get(_ context.Context, name string) (*Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vocabs[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Vocabulary, 0, len(s.vocabs))
	for _, v := range s.vocabs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, vocab *Vocabulary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vocabs[vocab.Name] = *vocab
	return nil
}
