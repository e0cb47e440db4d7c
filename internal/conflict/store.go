package conflict

import (
	"context"

	id "terrasync/pkg/domain"
)

// Store persists conflicts and serves the review queue.
type Store interface {
	Create(ctx context.Context, c *Conflict) error
	Get(ctx context.Context, conflictID id.ConflictID) (*Conflict, error)
	Update(ctx context.Context, c *Conflict) error
	ListByPackage(ctx context.Context, pkgID id.PackageID) ([]*Conflict, error)
	// ListOpen returns pending conflicts ordered by priority then age.
	ListOpen(ctx context.Context) ([]*Conflict, error)
	CountOpenByPackage(ctx context.Context, pkgID id.PackageID) (int, error)
}
