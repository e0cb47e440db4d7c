package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules holds the operational tunables that reviewers adjust without a
// redeploy: geographic bounds, duplicate-detection weights and thresholds,
// and conflict SLAs. Loaded from rules.yaml; defaults cover every field so a
// missing file is not an error.
type Rules struct {
	// Bounds is the operating country's bounding box for coordinate checks.
	Bounds BoundingBox `yaml:"bounds"`
	// Dedupe configures the duplicate detection engine.
	Dedupe DedupeRules `yaml:"dedupe"`
	// Conflict configures resolution SLAs per priority.
	Conflict ConflictRules `yaml:"conflict"`
	// SchemaVersions lists the container schema versions this server accepts.
	SchemaVersions []string `yaml:"schema_versions"`
	// CompositeIDLength is the required digit count of location-based
	// composite identifiers.
	CompositeIDLength int `yaml:"composite_id_length"`
}

type BoundingBox struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

type DedupeRules struct {
	// Weights sum to 100; each contributes its share to the 0-100 score.
	WeightNationalID    float64 `yaml:"weight_national_id"`
	WeightCompositeCode float64 `yaml:"weight_composite_code"`
	WeightName          float64 `yaml:"weight_name"`
	WeightPhone         float64 `yaml:"weight_phone"`

	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
	ReportThreshold float64 `yaml:"report_threshold"`
}

type ConflictRules struct {
	HighPriorityHours   int `yaml:"high_priority_hours"`
	NormalPriorityHours int `yaml:"normal_priority_hours"`
	LowPriorityHours    int `yaml:"low_priority_hours"`

	// AutoIgnoreBelow closes low-confidence conflicts scoring under this
	// value without human review. Zero disables auto-resolution.
	AutoIgnoreBelow float64 `yaml:"auto_ignore_below"`
}

// DefaultRules returns the built-in tunables. The bounding box defaults to
// the pilot deployment country (Jordan).
func DefaultRules() Rules {
	return Rules{
		Bounds: BoundingBox{MinLat: 29.18, MaxLat: 33.38, MinLon: 34.88, MaxLon: 39.30},
		Dedupe: DedupeRules{
			WeightNationalID:    40,
			WeightCompositeCode: 40,
			WeightName:          30,
			WeightPhone:         10,
			HighThreshold:       85,
			MediumThreshold:     70,
			ReportThreshold:     55,
		},
		Conflict: ConflictRules{
			HighPriorityHours:   24,
			NormalPriorityHours: 72,
			LowPriorityHours:    168,
		},
		SchemaVersions:    []string{"1.0", "1.1"},
		CompositeIDLength: 14,
	}
}

// LoadRules reads rules.yaml at path, overlaying the defaults. A missing
// file yields the defaults; a malformed file is an error.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) validate() error {
	if r.Bounds.MinLat >= r.Bounds.MaxLat || r.Bounds.MinLon >= r.Bounds.MaxLon {
		return fmt.Errorf("bounding box is degenerate")
	}
	d := r.Dedupe
	if d.ReportThreshold > d.MediumThreshold || d.MediumThreshold > d.HighThreshold {
		return fmt.Errorf("dedupe thresholds must be ordered report <= medium <= high")
	}
	if len(r.SchemaVersions) == 0 {
		return fmt.Errorf("at least one schema version must be supported")
	}
	return nil
}
