package ingest

import (
	"context"
	"sort"
	"sync"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and dev mode.
type InMemoryStore struct {
	mu         sync.RWMutex
	packages   map[id.PackageID]*ImportPackage
	byChecksum map[string]id.PackageID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		packages:   make(map[id.PackageID]*ImportPackage),
		byChecksum: make(map[string]id.PackageID),
	}
}

func clonePackage(p *ImportPackage) *ImportPackage {
	c := *p
	c.RecordCounts = cloneIntMap(p.RecordCounts)
	c.VocabVersions = cloneStringMap(p.VocabVersions)
	c.VocabIssues = append(c.VocabIssues[:0:0], p.VocabIssues...)
	c.LevelResults = append(c.LevelResults[:0:0], p.LevelResults...)
	return &c
}

func cloneIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *InMemoryStore) CreateIfNew(_ context.Context, pkg *ImportPackage) (*ImportPackage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byChecksum[pkg.Checksum]; ok {
		return clonePackage(s.packages[existingID]), false, nil
	}
	s.packages[pkg.ID] = clonePackage(pkg)
	s.byChecksum[pkg.Checksum] = pkg.ID
	return clonePackage(pkg), true, nil
}

func (s *InMemoryStore) Get(_ context.Context, pkgID id.PackageID) (*ImportPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pkg, ok := s.packages[pkgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePackage(pkg), nil
}

func (s *InMemoryStore) Update(_ context.Context, pkg *ImportPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packages[pkg.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.packages[pkg.ID] = clonePackage(pkg)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*ImportPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ImportPackage, 0, len(s.packages))
	for _, p := range s.packages {
		out = append(out, clonePackage(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
