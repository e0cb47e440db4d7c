// Package production is terrasync's view of the registry proper: the
// committed entities that duplicate detection compares against, and the
// building assignments the sync protocol hands to field collectors.
package production

import (
	"time"

	id "terrasync/pkg/domain"
)

type Building struct {
	ID            id.EntityID
	CompositeCode string
	Address       string
	Latitude      *float64
	Longitude     *float64
	Geometry      string
	CreatedAt     time.Time
}

type Unit struct {
	ID         id.EntityID
	BuildingID id.EntityID
	UnitCode   string
	Floor      int
	UseCode    int
	CreatedAt  time.Time
}

type Person struct {
	ID          id.EntityID
	NationalID  string
	FullName    string
	Phone       string
	GenderCode  int
	HouseholdID *id.EntityID
	CreatedAt   time.Time
}

type Household struct {
	ID           id.EntityID
	HeadPersonID *id.EntityID
	DeclaredSize int
	MaleCount    int
	FemaleCount  int
	CreatedAt    time.Time
}

type Relation struct {
	ID           id.EntityID
	PersonID     id.EntityID
	UnitID       id.EntityID
	RelationCode int
	SharePercent float64
	CreatedAt    time.Time
}

type Evidence struct {
	ID         id.EntityID
	RelationID *id.EntityID
	ClaimID    *id.EntityID
	KindCode   int
	FileRef    string
	CreatedAt  time.Time
}

type Claim struct {
	ID         id.EntityID
	ClaimantID id.EntityID
	UnitID     id.EntityID
	Status     string
	Stage      string
	CreatedAt  time.Time
}

type Survey struct {
	ID         id.EntityID
	BuildingID id.EntityID
	SurveyedAt time.Time
	Notes      string
	CreatedAt  time.Time
}

// TransferStatus tracks whether an assignment has reached its device.
type TransferStatus string

const (
	TransferPending     TransferStatus = "pending"
	TransferFailed      TransferStatus = "failed"
	TransferTransferred TransferStatus = "transferred"
)

// Assignment ties a building survey task to a field collector.
type Assignment struct {
	ID             id.AssignmentID
	CollectorID    id.CollectorID
	BuildingID     id.EntityID
	AreaName       string
	TransferStatus TransferStatus
	AssignedAt     time.Time
	TransferredAt  *time.Time
}

// Downloadable reports whether the assignment should be sent to the device:
// pending and previously failed transfers, never already-transferred ones.
func (a *Assignment) Downloadable() bool {
	return a.TransferStatus == TransferPending || a.TransferStatus == TransferFailed
}
