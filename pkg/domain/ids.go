package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "terrasync/pkg/domain-errors"
)

// Typed identifiers for the import and sync core. Wrapping uuid.UUID keeps
// cross-type assignment a compile error: a PackageID can never be passed
// where a ConflictID is expected.
type (
	// PackageID identifies an uploaded import package (from the container manifest).
	PackageID uuid.UUID
	// RecordID identifies a staging record.
	RecordID uuid.UUID
	// ConflictID identifies a detected duplicate pair awaiting resolution.
	ConflictID uuid.UUID
	// SessionID identifies one device sync cycle.
	SessionID uuid.UUID
	// CollectorID identifies a field collector.
	CollectorID uuid.UUID
	// AssignmentID identifies a unit of assigned field work.
	AssignmentID uuid.UUID
	// EntityID identifies a production entity. Opaque to this core.
	EntityID uuid.UUID
)

func NewPackageID() PackageID       { return PackageID(uuid.New()) }
func NewRecordID() RecordID         { return RecordID(uuid.New()) }
func NewConflictID() ConflictID     { return ConflictID(uuid.New()) }
func NewSessionID() SessionID       { return SessionID(uuid.New()) }
func NewCollectorID() CollectorID   { return CollectorID(uuid.New()) }
func NewEntityID() EntityID         { return EntityID(uuid.New()) }
func NewAssignmentID() AssignmentID { return AssignmentID(uuid.New()) }

func (id PackageID) String() string    { return uuid.UUID(id).String() }
func (id RecordID) String() string     { return uuid.UUID(id).String() }
func (id ConflictID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id CollectorID) String() string  { return uuid.UUID(id).String() }
func (id AssignmentID) String() string { return uuid.UUID(id).String() }
func (id EntityID) String() string     { return uuid.UUID(id).String() }

func (id PackageID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ConflictID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CollectorID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AssignmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs in canonical textual form.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	if len(s) > 36 || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "malformed id")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "malformed id: "+s)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "nil id not allowed")
	}
	return u, nil
}

func ParsePackageID(s string) (PackageID, error) {
	u, err := parseUUID(s)
	return PackageID(u), err
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s)
	return RecordID(u), err
}

func ParseConflictID(s string) (ConflictID, error) {
	u, err := parseUUID(s)
	return ConflictID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

func ParseCollectorID(s string) (CollectorID, error) {
	u, err := parseUUID(s)
	return CollectorID(u), err
}

func ParseAssignmentID(s string) (AssignmentID, error) {
	u, err := parseUUID(s)
	return AssignmentID(u), err
}

func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s)
	return EntityID(u), err
}
