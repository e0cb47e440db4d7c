package conflict

import (
	"context"
	"sort"
	"sync"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

var priorityRank = map[Priority]int{PriorityHigh: 0, PriorityNormal: 1, PriorityLow: 2}

// InMemoryStore backs unit tests and dev mode.
type InMemoryStore struct {
	mu        sync.RWMutex
	conflicts map[id.ConflictID]*Conflict
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conflicts: make(map[id.ConflictID]*Conflict)}
}

func cloneConflict(c *Conflict) *Conflict {
	copied := *c
	copied.Criteria = append(copied.Criteria[:0:0], c.Criteria...)
	copied.ReviewHistory = append(copied.ReviewHistory[:0:0], c.ReviewHistory...)
	if c.Comparison != nil {
		copied.Comparison = make(map[string]FieldPair, len(c.Comparison))
		for k, v := range c.Comparison {
			copied.Comparison[k] = v
		}
	}
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		copied.ResolvedAt = &at
	}
	if c.Merge != nil {
		m := *c.Merge
		m.Provenance = make(map[string]string, len(c.Merge.Provenance))
		for k, v := range c.Merge.Provenance {
			m.Provenance[k] = v
		}
		copied.Merge = &m
	}
	return &copied
}

func (s *InMemoryStore) Create(_ context.Context, c *Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conflicts[c.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.conflicts[c.ID] = cloneConflict(c)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, conflictID id.ConflictID) (*Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[conflictID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneConflict(c), nil
}

func (s *InMemoryStore) Update(_ context.Context, c *Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conflicts[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.conflicts[c.ID] = cloneConflict(c)
	return nil
}

func (s *InMemoryStore) ListByPackage(_ context.Context, pkgID id.PackageID) ([]*Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Conflict
	for _, c := range s.conflicts {
		if c.PackageID == pkgID {
			out = append(out, cloneConflict(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *InMemoryStore) ListOpen(_ context.Context) ([]*Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Conflict
	for _, c := range s.conflicts {
		if c.Status == StatusPendingReview {
			out = append(out, cloneConflict(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if priorityRank[out[i].Priority] != priorityRank[out[j].Priority] {
			return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountOpenByPackage(_ context.Context, pkgID id.PackageID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, c := range s.conflicts {
		if c.PackageID == pkgID && c.Status == StatusPendingReview {
			count++
		}
	}
	return count, nil
}
