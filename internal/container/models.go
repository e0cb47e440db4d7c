// Package container defines the wire format of field-collected data
// packages: the signed manifest and the per-entity-type record batches.
// Everything in here is untrusted input; identifiers are package-local
// strings that only the commit engine maps to production IDs.
package container

import "time"

// Manifest describes an uploaded package before its payload is trusted.
type Manifest struct {
	PackageID     string    `json:"package_id"`
	PackageNumber string    `json:"package_number"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	CreatedAt     time.Time `json:"created_at"`
	ExportedAt    time.Time `json:"exported_at"`
	CollectorID   string    `json:"collector_id"`
	DeviceID      string    `json:"device_id"`
	// Checksum is the hex SHA-256 of the payload bytes.
	Checksum string `json:"checksum"`
	// Signature is an optional base64 Ed25519 signature over the payload.
	Signature     string `json:"signature,omitempty"`
	SchemaVersion string `json:"schema_version"`
	// RecordCounts declares how many records of each kind the payload holds.
	RecordCounts map[string]int `json:"record_counts"`
	// VocabularyVersions maps vocabulary name to the MAJOR.MINOR.PATCH the
	// device exported against.
	VocabularyVersions map[string]string `json:"vocabulary_versions"`
}

// Payload is the decoded package content: one batch per entity kind.
type Payload struct {
	Buildings  []Building  `json:"buildings,omitempty"`
	Units      []Unit      `json:"units,omitempty"`
	Persons    []Person    `json:"persons,omitempty"`
	Households []Household `json:"households,omitempty"`
	Relations  []Relation  `json:"relations,omitempty"`
	Evidence   []Evidence  `json:"evidence,omitempty"`
	Claims     []Claim     `json:"claims,omitempty"`
	Surveys    []Survey    `json:"surveys,omitempty"`
}

// Building is a surveyed structure. CompositeCode is the location-based
// identifier validated at level 8.
type Building struct {
	OriginalID    string `json:"original_id"`
	CompositeCode string `json:"composite_code"`
	Address       string `json:"address,omitempty"`
	// Latitude/Longitude are pointers so "not supplied" is distinguishable
	// from zero; the spatial validator requires them as a pair.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Geometry  string   `json:"geometry,omitempty"`
	TypeCode  int      `json:"type_code,omitempty"`
}

type Unit struct {
	OriginalID         string `json:"original_id"`
	BuildingOriginalID string `json:"building_original_id"`
	UnitCode           string `json:"unit_code"`
	Floor              int    `json:"floor,omitempty"`
	UseCode            int    `json:"use_code,omitempty"`
}

type Person struct {
	OriginalID          string `json:"original_id"`
	NationalID          string `json:"national_id,omitempty"`
	FullName            string `json:"full_name"`
	Phone               string `json:"phone,omitempty"`
	GenderCode          int    `json:"gender_code,omitempty"`
	HouseholdOriginalID string `json:"household_original_id,omitempty"`
}

type Household struct {
	OriginalID           string `json:"original_id"`
	HeadPersonOriginalID string `json:"head_person_original_id,omitempty"`
	DeclaredSize         int    `json:"declared_size"`
	MaleCount            int    `json:"male_count"`
	FemaleCount          int    `json:"female_count"`
}

type Relation struct {
	OriginalID       string  `json:"original_id"`
	PersonOriginalID string  `json:"person_original_id"`
	UnitOriginalID   string  `json:"unit_original_id"`
	RelationCode     int     `json:"relation_code"`
	SharePercent     float64 `json:"share_percent,omitempty"`
}

type Evidence struct {
	OriginalID         string `json:"original_id"`
	RelationOriginalID string `json:"relation_original_id,omitempty"`
	ClaimOriginalID    string `json:"claim_original_id,omitempty"`
	KindCode           int    `json:"kind_code,omitempty"`
	FileRef            string `json:"file_ref"`
}

type Claim struct {
	OriginalID         string `json:"original_id"`
	ClaimantOriginalID string `json:"claimant_original_id"`
	UnitOriginalID     string `json:"unit_original_id"`
	Status             string `json:"status"`
	Stage              string `json:"stage"`
}

type Survey struct {
	OriginalID         string    `json:"original_id"`
	BuildingOriginalID string    `json:"building_original_id"`
	SurveyedAt         time.Time `json:"surveyed_at"`
	Notes              string    `json:"notes,omitempty"`
}

// Count returns the number of records of the named kind actually present.
func (p *Payload) Count(kind string) int {
	switch kind {
	case "building":
		return len(p.Buildings)
	case "unit":
		return len(p.Units)
	case "person":
		return len(p.Persons)
	case "household":
		return len(p.Households)
	case "relation":
		return len(p.Relations)
	case "evidence":
		return len(p.Evidence)
	case "claim":
		return len(p.Claims)
	case "survey":
		return len(p.Surveys)
	}
	return 0
}

// TotalRecords sums every batch.
func (p *Payload) TotalRecords() int {
	return len(p.Buildings) + len(p.Units) + len(p.Persons) + len(p.Households) +
		len(p.Relations) + len(p.Evidence) + len(p.Claims) + len(p.Surveys)
}
