package production

import (
	"context"
	"sort"
	"sync"
	"time"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// InMemoryStore holds a registry snapshot for tests and dev mode. It also
// accepts writes so the commit engine's in-memory transaction can land
// promoted entities here.
type InMemoryStore struct {
	mu          sync.RWMutex
	buildings   map[id.EntityID]Building
	units       map[id.EntityID]Unit
	persons     map[id.EntityID]Person
	households  map[id.EntityID]Household
	relations   map[id.EntityID]Relation
	evidence    map[id.EntityID]Evidence
	claims      map[id.EntityID]Claim
	surveys     map[id.EntityID]Survey
	assignments map[id.AssignmentID]*Assignment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		buildings:   make(map[id.EntityID]Building),
		units:       make(map[id.EntityID]Unit),
		persons:     make(map[id.EntityID]Person),
		households:  make(map[id.EntityID]Household),
		relations:   make(map[id.EntityID]Relation),
		evidence:    make(map[id.EntityID]Evidence),
		claims:      make(map[id.EntityID]Claim),
		surveys:     make(map[id.EntityID]Survey),
		assignments: make(map[id.AssignmentID]*Assignment),
	}
}

// Seed helpers for tests and dev fixtures.

func (s *InMemoryStore) AddBuilding(b Building) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildings[b.ID] = b
}

func (s *InMemoryStore) AddUnit(u Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

func (s *InMemoryStore) AddPerson(p Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
}

func (s *InMemoryStore) AddHousehold(h Household) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.households[h.ID] = h
}

func (s *InMemoryStore) AddRelation(r Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[r.ID] = r
}

func (s *InMemoryStore) AddEvidence(e Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence[e.ID] = e
}

func (s *InMemoryStore) AddClaim(c Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[c.ID] = c
}

func (s *InMemoryStore) AddSurvey(v Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys[v.ID] = v
}

func (s *InMemoryStore) AddAssignment(a *Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.assignments[a.ID] = &copied
}

func (s *InMemoryStore) ListPersons(_ context.Context) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *InMemoryStore) ListBuildings(_ context.Context) ([]Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Building, 0, len(s.buildings))
	for _, b := range s.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *InMemoryStore) ListDownloadable(_ context.Context, collectorID id.CollectorID) ([]*Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Assignment
	for _, a := range s.assignments {
		if a.CollectorID == collectorID && a.Downloadable() {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (s *InMemoryStore) MarkTransferred(_ context.Context, assignmentID id.AssignmentID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if a.TransferStatus == TransferTransferred {
		return false, nil
	}
	a.TransferStatus = TransferTransferred
	a.TransferredAt = &at
	return true, nil
}

func (s *InMemoryStore) GetBuilding(_ context.Context, buildingID id.EntityID) (*Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buildings[buildingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

func (s *InMemoryStore) ListUnitsByBuilding(_ context.Context, buildingID id.EntityID) ([]Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Unit
	for _, u := range s.units {
		if u.BuildingID == buildingID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitCode < out[j].UnitCode })
	return out, nil
}
