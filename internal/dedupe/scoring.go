package dedupe

import (
	"terrasync/internal/conflict"
	"terrasync/internal/platform/config"
)

// Features is the comparable slice of an entity, the same shape whether it
// came from staging or production.
type Features struct {
	Ref           conflict.EntityRef
	NationalID    string
	CompositeCode string
	FullName      string
	Phone         string
}

// Match is the outcome of comparing two entities.
type Match struct {
	Score      float64
	Confidence conflict.Confidence
	Criteria   []conflict.MatchCriterion
	// ExactAgreement means a hard identifier (national id or composite
	// code) matched on both sides.
	ExactAgreement bool
	Reportable     bool
}

// Score compares two feature sets with the configured weights. Only fields
// present on both sides participate; the score is normalized to 0-100 over
// the applicable weight so sparse records are not penalized for what they
// never carried. The function is symmetric in its arguments.
func Score(a, b Features, rules config.DedupeRules) Match {
	var m Match
	var weightSum, weighted float64

	component := func(field, first, second string, weight, sim float64, exact bool) {
		weightSum += weight
		weighted += weight * sim
		m.Criteria = append(m.Criteria, conflict.MatchCriterion{
			Field:      field,
			First:      first,
			Second:     second,
			Similarity: sim,
			Exact:      exact,
			Weight:     weight,
		})
	}

	if a.NationalID != "" && b.NationalID != "" {
		sim := 0.0
		if a.NationalID == b.NationalID {
			sim = 1
			m.ExactAgreement = true
		}
		component("national_id", a.NationalID, b.NationalID, rules.WeightNationalID, sim, sim == 1)
	}
	if a.CompositeCode != "" && b.CompositeCode != "" {
		sim := 0.0
		if a.CompositeCode == b.CompositeCode {
			sim = 1
			m.ExactAgreement = true
		}
		component("composite_code", a.CompositeCode, b.CompositeCode, rules.WeightCompositeCode, sim, sim == 1)
	}
	if a.FullName != "" && b.FullName != "" {
		sim := JaroWinkler(NormalizeName(a.FullName), NormalizeName(b.FullName))
		component("full_name", a.FullName, b.FullName, rules.WeightName, sim, false)
	}
	if a.Phone != "" && b.Phone != "" {
		sim := 0.0
		if PhonesMatch(a.Phone, b.Phone) {
			sim = 1
		}
		component("phone", a.Phone, b.Phone, rules.WeightPhone, sim, sim == 1)
	}

	if weightSum == 0 {
		return m
	}
	m.Score = weighted / weightSum * 100

	switch {
	case m.Score >= rules.HighThreshold && m.ExactAgreement:
		m.Confidence = conflict.ConfidenceHigh
	case m.Score >= rules.MediumThreshold:
		m.Confidence = conflict.ConfidenceMedium
	case m.Score >= rules.ReportThreshold:
		m.Confidence = conflict.ConfidenceLow
	default:
		return m
	}
	m.Reportable = true
	return m
}
