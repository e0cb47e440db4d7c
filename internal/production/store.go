package production

import (
	"context"
	"time"

	id "terrasync/pkg/domain"
)

// EntityReader is the read-only slice of the registry duplicate detection
// needs. Detection never writes production data.
type EntityReader interface {
	ListPersons(ctx context.Context) ([]Person, error)
	ListBuildings(ctx context.Context) ([]Building, error)
}

// AssignmentStore manages survey assignments and their transfer status.
type AssignmentStore interface {
	// ListDownloadable returns a collector's pending and failed-transfer
	// assignments.
	ListDownloadable(ctx context.Context, collectorID id.CollectorID) ([]*Assignment, error)
	// MarkTransferred flips one assignment to Transferred. The transition is
	// one-way: marking an already-transferred assignment reports changed ==
	// false and is not an error.
	MarkTransferred(ctx context.Context, assignmentID id.AssignmentID, at time.Time) (changed bool, err error)
	GetBuilding(ctx context.Context, buildingID id.EntityID) (*Building, error)
	ListUnitsByBuilding(ctx context.Context, buildingID id.EntityID) ([]Unit, error)
}
