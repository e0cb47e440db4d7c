// Package validation runs the ordered chain of batch validators over a
// package's staging partition. Validators annotate records with findings and
// never abort on bad data; only infrastructure faults surface as errors.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"terrasync/internal/platform/metrics"
	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
	"terrasync/pkg/requestcontext"
)

// LevelResult is one validator's summary, aggregated onto the package.
type LevelResult struct {
	Validator      string        `json:"validator"`
	Level          int           `json:"level"`
	ErrorCount     int           `json:"error_count"`
	WarningCount   int           `json:"warning_count"`
	RecordsChecked int           `json:"records_checked"`
	Duration       time.Duration `json:"duration_ns"`
}

// Blocking reports whether this level found any hard errors.
func (r LevelResult) Blocking() bool {
	return r.ErrorCount > 0
}

// Validator is one level of the chain. Validate scans the loaded record set,
// attaches findings and returns counts. It must not mutate anything outside
// the set.
type Validator interface {
	Name() string
	Level() int
	Validate(ctx context.Context, set *RecordSet) LevelResult
}

// RecordSet is a package's staging records loaded once and indexed for the
// cross-entity checks.
type RecordSet struct {
	PackageID id.PackageID
	Records   []*staging.Record

	byKind map[id.EntityKind][]*staging.Record
}

// NewRecordSet indexes records by kind.
func NewRecordSet(pkgID id.PackageID, records []*staging.Record) *RecordSet {
	set := &RecordSet{
		PackageID: pkgID,
		Records:   records,
		byKind:    make(map[id.EntityKind][]*staging.Record),
	}
	for _, r := range records {
		set.byKind[r.Kind] = append(set.byKind[r.Kind], r)
	}
	return set
}

// Kind returns all records of one kind, in staging order.
func (s *RecordSet) Kind(kind id.EntityKind) []*staging.Record {
	return s.byKind[kind]
}

// OriginalIDs returns the set of package-local identifiers present for a
// kind, for reference-resolution checks.
func (s *RecordSet) OriginalIDs(kind id.EntityKind) map[string]bool {
	ids := make(map[string]bool, len(s.byKind[kind]))
	for _, r := range s.byKind[kind] {
		ids[r.OriginalID] = true
	}
	return ids
}

// Pipeline drives the chain: levels run strictly in ascending order, and a
// blocking failure at one level never stops later levels from annotating.
// Blocking is enforced downstream, at commit.
type Pipeline struct {
	store      staging.Store
	validators []Validator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewPipeline composes a chain from the given validators, sorted by level.
func NewPipeline(store staging.Store, m *metrics.Metrics, logger *slog.Logger, validators ...Validator) *Pipeline {
	sorted := append([]Validator(nil), validators...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level() < sorted[j].Level() })
	return &Pipeline{store: store, validators: sorted, metrics: m, logger: logger}
}

// Run loads the package's staging partition, passes it through every level,
// finalizes record statuses and persists the annotations. The returned
// results are in level order.
func (p *Pipeline) Run(ctx context.Context, pkgID id.PackageID) ([]LevelResult, error) {
	records, err := p.store.ListByPackage(ctx, pkgID)
	if err != nil {
		return nil, fmt.Errorf("load staging partition: %w", err)
	}
	set := NewRecordSet(pkgID, records)

	results := make([]LevelResult, 0, len(p.validators))
	for _, v := range p.validators {
		start := requestcontext.Now(ctx)
		result := v.Validate(ctx, set)
		result.Validator = v.Name()
		result.Level = v.Level()
		result.Duration = time.Since(start)

		p.metrics.ObserveValidator(result.Validator, result.Duration, result.ErrorCount, result.WarningCount)
		if result.Blocking() {
			p.logger.WarnContext(ctx, "validation level found blocking errors",
				"package_id", pkgID, "validator", result.Validator,
				"level", result.Level, "errors", result.ErrorCount)
		}
		results = append(results, result)
	}

	for _, r := range set.Records {
		r.Finalize()
		if err := p.store.Update(ctx, r); err != nil {
			return nil, fmt.Errorf("persist validation findings: %w", err)
		}
	}
	return results, nil
}

// Blocking reports whether any level in the run found hard errors.
func Blocking(results []LevelResult) bool {
	for _, r := range results {
		if r.Blocking() {
			return true
		}
	}
	return false
}

// tally counts the findings a single validator adds, so each level reports
// only its own contribution.
type tally struct {
	errors   int
	warnings int
	checked  int
}

func (t *tally) addError(r *staging.Record, f staging.Finding) {
	r.AddError(f)
	t.errors++
}

func (t *tally) addWarning(r *staging.Record, f staging.Finding) {
	r.AddWarning(f)
	t.warnings++
}

func (t *tally) result() LevelResult {
	return LevelResult{ErrorCount: t.errors, WarningCount: t.warnings, RecordsChecked: t.checked}
}
