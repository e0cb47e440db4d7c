package staging

import (
	"context"
	"sync"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and dev mode. Records are deep-enough
// copied on the way in and out that callers cannot mutate stored state
// through aliased slices.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]*Record)}
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Errors = append([]Finding(nil), r.Errors...)
	c.Warnings = append([]Finding(nil), r.Warnings...)
	if r.ProductionID != nil {
		pid := *r.ProductionID
		c.ProductionID = &pid
	}
	return &c
}

func (s *InMemoryStore) BulkInsert(_ context.Context, records []*Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, exists := s.records[r.ID]; exists {
			return sentinel.ErrDuplicate
		}
	}
	for _, r := range records {
		s.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (s *InMemoryStore) ListByPackage(_ context.Context, pkgID id.PackageID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, r := range s.records {
		if r.PackageID == pkgID {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByPackageKind(_ context.Context, pkgID id.PackageID, kind id.EntityKind) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, r := range s.records {
		if r.PackageID == pkgID && r.Kind == kind {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

func (s *InMemoryStore) CountByPackage(_ context.Context, pkgID id.PackageID) (map[id.EntityKind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.EntityKind]int)
	for _, r := range s.records {
		if r.PackageID == pkgID {
			counts[r.Kind]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) DeleteByPackage(_ context.Context, pkgID id.PackageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rid, r := range s.records {
		if r.PackageID == pkgID {
			delete(s.records, rid)
		}
	}
	return nil
}
