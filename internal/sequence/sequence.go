// Package sequence issues monotonic human-readable numbers for packages and
// conflicts. Backed by database sequences in production so concurrent
// creation can never mint the same code twice.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Sequence hands out the next value of a named counter.
type Sequence interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Format renders a sequence value as a human-readable code, e.g. PKG-000042.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// InMemory is a process-local sequence for tests and dev mode.
type InMemory struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{counters: make(map[string]int64)}
}

func (s *InMemory) Next(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	return s.counters[name], nil
}

// Postgres delegates to native sequences, which are concurrency-safe and
// survive restarts.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// allowed guards against interpolating arbitrary identifiers into SQL.
var allowed = map[string]string{
	"package":  "package_number_seq",
	"conflict": "conflict_number_seq",
}

func (s *Postgres) Next(ctx context.Context, name string) (int64, error) {
	seq, ok := allowed[name]
	if !ok {
		return 0, fmt.Errorf("unknown sequence %q", name)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval($1)`, seq).Scan(&n); err != nil {
		return 0, fmt.Errorf("next %s number: %w", name, err)
	}
	return n, nil
}
