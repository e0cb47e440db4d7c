// Package staging holds package contents in isolation between upload and
// commit. One staging partition per package; records carry the package-local
// original identifier and never a device-supplied production key.
package staging

import (
	"encoding/json"
	"fmt"
	"time"

	"terrasync/internal/container"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// ValidationStatus of a single staging record.
type ValidationStatus string

const (
	StatusPending ValidationStatus = "pending"
	StatusValid   ValidationStatus = "valid"
	StatusWarning ValidationStatus = "warning"
	StatusInvalid ValidationStatus = "invalid"
)

// Finding is one structured validation result attached to a record.
type Finding struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Record is the shared shape of every staged entity. The kind-specific data
// lives in Payload; the base carries everything the pipeline needs without
// knowing the kind.
type Record struct {
	ID         id.RecordID
	PackageID  id.PackageID
	Kind       id.EntityKind
	OriginalID string

	Status   ValidationStatus
	Errors   []Finding
	Warnings []Finding
	Approved bool

	StagedAt     time.Time
	ProductionID *id.EntityID

	Payload any
}

// NewRecord stages one entity for a package.
func NewRecord(pkgID id.PackageID, kind id.EntityKind, originalID string, payload any, stagedAt time.Time) *Record {
	return &Record{
		ID:         id.NewRecordID(),
		PackageID:  pkgID,
		Kind:       kind,
		OriginalID: originalID,
		Status:     StatusPending,
		StagedAt:   stagedAt,
		Payload:    payload,
	}
}

// AddError records a blocking finding. The record becomes Invalid and can
// never be approved for commit.
func (r *Record) AddError(f Finding) {
	r.Errors = append(r.Errors, f)
	r.Status = StatusInvalid
	r.Approved = false
}

// AddWarning records a non-blocking finding. Warnings never make a record
// Invalid and never block commit.
func (r *Record) AddWarning(f Finding) {
	r.Warnings = append(r.Warnings, f)
	if r.Status != StatusInvalid {
		r.Status = StatusWarning
	}
}

// Finalize settles the status after all validators ran. The invariant is
// Status == Invalid exactly when Errors is non-empty.
func (r *Record) Finalize() {
	switch {
	case len(r.Errors) > 0:
		r.Status = StatusInvalid
	case len(r.Warnings) > 0:
		r.Status = StatusWarning
	default:
		r.Status = StatusValid
	}
}

// Approve marks the record eligible for commit. A record with any blocking
// error cannot be approved.
func (r *Record) Approve() error {
	if len(r.Errors) > 0 || r.Status == StatusInvalid {
		return fmt.Errorf("record %s has blocking errors: %w", r.ID, sentinel.ErrInvalidState)
	}
	if r.Status == StatusPending {
		return fmt.Errorf("record %s not yet validated: %w", r.ID, sentinel.ErrInvalidState)
	}
	r.Approved = true
	return nil
}

// Committable reports whether the commit engine may promote this record.
func (r *Record) Committable() bool {
	return r.Approved && (r.Status == StatusValid || r.Status == StatusWarning)
}

// Building returns the typed payload, or nil when the kind does not match.
func (r *Record) Building() *container.Building {
	p, _ := r.Payload.(*container.Building)
	return p
}

func (r *Record) Unit() *container.Unit {
	p, _ := r.Payload.(*container.Unit)
	return p
}

func (r *Record) Person() *container.Person {
	p, _ := r.Payload.(*container.Person)
	return p
}

func (r *Record) Household() *container.Household {
	p, _ := r.Payload.(*container.Household)
	return p
}

func (r *Record) Relation() *container.Relation {
	p, _ := r.Payload.(*container.Relation)
	return p
}

func (r *Record) Evidence() *container.Evidence {
	p, _ := r.Payload.(*container.Evidence)
	return p
}

func (r *Record) Claim() *container.Claim {
	p, _ := r.Payload.(*container.Claim)
	return p
}

func (r *Record) Survey() *container.Survey {
	p, _ := r.Payload.(*container.Survey)
	return p
}

// decodePayload rebuilds the typed payload from its stored JSON form.
func decodePayload(kind id.EntityKind, raw []byte) (any, error) {
	var target any
	switch kind {
	case id.KindBuilding:
		target = &container.Building{}
	case id.KindUnit:
		target = &container.Unit{}
	case id.KindPerson:
		target = &container.Person{}
	case id.KindHousehold:
		target = &container.Household{}
	case id.KindRelation:
		target = &container.Relation{}
	case id.KindEvidence:
		target = &container.Evidence{}
	case id.KindClaim:
		target = &container.Claim{}
	case id.KindSurvey:
		target = &container.Survey{}
	default:
		return nil, fmt.Errorf("unknown staged kind %q", kind)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return target, nil
}
