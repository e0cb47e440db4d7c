package domain

import "fmt"

// EntityKind is the production entity type a staged record maps onto.
type EntityKind string

const (
	KindBuilding  EntityKind = "building"
	KindUnit      EntityKind = "unit"
	KindPerson    EntityKind = "person"
	KindHousehold EntityKind = "household"
	KindRelation  EntityKind = "relation"
	KindEvidence  EntityKind = "evidence"
	KindClaim     EntityKind = "claim"
	KindSurvey    EntityKind = "survey"
)

// commitOrder is the promotion order at commit time. Referencing kinds come
// after the kinds they reference so the remap table is always populated
// before a cross-reference is rewritten.
var commitOrder = map[EntityKind]int{
	KindBuilding:  1,
	KindUnit:      2,
	KindPerson:    3,
	KindHousehold: 3,
	KindRelation:  4,
	KindEvidence:  5,
	KindClaim:     6,
	KindSurvey:    7,
}

// ParseEntityKind validates a kind received from an untrusted container.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if _, ok := commitOrder[k]; !ok {
		return "", fmt.Errorf("unknown entity kind: %q", s)
	}
	return k, nil
}

func (k EntityKind) String() string { return string(k) }

// CommitRank orders kinds for promotion. Unknown kinds sort last.
func (k EntityKind) CommitRank() int {
	if r, ok := commitOrder[k]; ok {
		return r
	}
	return 99
}

// KindsInCommitOrder returns every kind sorted by promotion order.
func KindsInCommitOrder() []EntityKind {
	return []EntityKind{
		KindBuilding, KindUnit, KindPerson, KindHousehold,
		KindRelation, KindEvidence, KindClaim, KindSurvey,
	}
}
