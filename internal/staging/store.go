package staging

import (
	"context"

	id "terrasync/pkg/domain"
)

// Store is the staging partition. Records are grouped by owning package;
// DeleteByPackage makes a cancelled load fully discardable.
type Store interface {
	BulkInsert(ctx context.Context, records []*Record) error
	ListByPackage(ctx context.Context, pkgID id.PackageID) ([]*Record, error)
	ListByPackageKind(ctx context.Context, pkgID id.PackageID, kind id.EntityKind) ([]*Record, error)
	Update(ctx context.Context, record *Record) error
	CountByPackage(ctx context.Context, pkgID id.PackageID) (map[id.EntityKind]int, error)
	DeleteByPackage(ctx context.Context, pkgID id.PackageID) error
}
