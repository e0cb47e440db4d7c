// Package commit promotes a package's approved staging records into the
// production registry, atomically and in dependency order.
package commit

import (
	"context"

	"terrasync/internal/production"
)

// Tx is one all-or-nothing promotion attempt. Either Commit lands every
// insert or Rollback discards them all; the port exposes nothing in between.
type Tx interface {
	InsertBuilding(ctx context.Context, b production.Building) error
	InsertUnit(ctx context.Context, u production.Unit) error
	InsertPerson(ctx context.Context, p production.Person) error
	InsertHousehold(ctx context.Context, h production.Household) error
	InsertRelation(ctx context.Context, r production.Relation) error
	InsertEvidence(ctx context.Context, e production.Evidence) error
	InsertClaim(ctx context.Context, c production.Claim) error
	InsertSurvey(ctx context.Context, s production.Survey) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens promotion transactions against the production registry.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}
