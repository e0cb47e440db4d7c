package ingest

import (
	"context"

	id "terrasync/pkg/domain"
)

// Store persists import packages. CreateIfNew is the upload idempotency
// point: the insert and the checksum uniqueness check are one atomic step,
// so two concurrent uploads of the same container can never both create a
// staging partition.
type Store interface {
	// CreateIfNew inserts pkg unless a package with the same checksum
	// already exists. It returns the stored package and whether this call
	// created it.
	CreateIfNew(ctx context.Context, pkg *ImportPackage) (*ImportPackage, bool, error)
	Get(ctx context.Context, pkgID id.PackageID) (*ImportPackage, error)
	Update(ctx context.Context, pkg *ImportPackage) error
	ListRecent(ctx context.Context, limit int) ([]*ImportPackage, error)
}
