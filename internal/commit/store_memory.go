package commit

import (
	"context"
	"fmt"
	"sync"

	"terrasync/internal/production"
)

// InMemoryStore buffers promotion writes per transaction and flushes them
// into a production.InMemoryStore only on Commit, so rollback semantics
// match the real database. A mutex serializes commits the way the registry
// serializes racing packages.
type InMemoryStore struct {
	mu       sync.Mutex
	registry *production.InMemoryStore
}

func NewInMemoryStore(registry *production.InMemoryStore) *InMemoryStore {
	return &InMemoryStore{registry: registry}
}

func (s *InMemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{store: s}, nil
}

type memoryTx struct {
	store *InMemoryStore
	done  bool

	buildings  []production.Building
	units      []production.Unit
	persons    []production.Person
	households []production.Household
	relations  []production.Relation
	evidence   []production.Evidence
	claims     []production.Claim
	surveys    []production.Survey
}

func (t *memoryTx) InsertBuilding(_ context.Context, b production.Building) error {
	t.buildings = append(t.buildings, b)
	return nil
}

func (t *memoryTx) InsertUnit(_ context.Context, u production.Unit) error {
	t.units = append(t.units, u)
	return nil
}

func (t *memoryTx) InsertPerson(_ context.Context, p production.Person) error {
	t.persons = append(t.persons, p)
	return nil
}

func (t *memoryTx) InsertHousehold(_ context.Context, h production.Household) error {
	t.households = append(t.households, h)
	return nil
}

func (t *memoryTx) InsertRelation(_ context.Context, r production.Relation) error {
	t.relations = append(t.relations, r)
	return nil
}

func (t *memoryTx) InsertEvidence(_ context.Context, e production.Evidence) error {
	t.evidence = append(t.evidence, e)
	return nil
}

func (t *memoryTx) InsertClaim(_ context.Context, c production.Claim) error {
	t.claims = append(t.claims, c)
	return nil
}

func (t *memoryTx) InsertSurvey(_ context.Context, s production.Survey) error {
	t.surveys = append(t.surveys, s)
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("promotion transaction already finished")
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.buildings {
		t.store.registry.AddBuilding(b)
	}
	for _, u := range t.units {
		t.store.registry.AddUnit(u)
	}
	for _, p := range t.persons {
		t.store.registry.AddPerson(p)
	}
	for _, h := range t.households {
		t.store.registry.AddHousehold(h)
	}
	for _, r := range t.relations {
		t.store.registry.AddRelation(r)
	}
	for _, e := range t.evidence {
		t.store.registry.AddEvidence(e)
	}
	for _, c := range t.claims {
		t.store.registry.AddClaim(c)
	}
	for _, s := range t.surveys {
		t.store.registry.AddSurvey(s)
	}
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	t.done = true
	return nil
}
