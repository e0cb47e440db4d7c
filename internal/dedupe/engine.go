package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"terrasync/internal/conflict"
	"terrasync/internal/platform/config"
	"terrasync/internal/production"
	"terrasync/internal/staging"
	id "terrasync/pkg/domain"
)

// ConflictOpener is the slice of the conflict service the engine needs.
type ConflictOpener interface {
	Open(ctx context.Context, d conflict.Detection) (*conflict.Conflict, error)
}

// Report summarizes one detection run over a package.
type Report struct {
	PersonDuplicates   int
	PropertyDuplicates int
	AutoResolved       int
	ConflictIDs        []id.ConflictID
}

// Total conflicts created.
func (r *Report) Total() int {
	return r.PersonDuplicates + r.PropertyDuplicates
}

// RequiringReview is the number of conflicts still open after rule-based
// auto-resolution.
func (r *Report) RequiringReview() int {
	return r.Total() - r.AutoResolved
}

// Engine compares staged entities against production and against each other.
// It reads the production store but never writes it, so detection runs for
// different packages are safe to run concurrently.
type Engine struct {
	staging    staging.Store
	production production.EntityReader
	conflicts  ConflictOpener
	rules      config.DedupeRules
	logger     *slog.Logger
}

func NewEngine(stagingStore staging.Store, reader production.EntityReader,
	conflicts ConflictOpener, rules config.DedupeRules, logger *slog.Logger) *Engine {
	return &Engine{
		staging:    stagingStore,
		production: reader,
		conflicts:  conflicts,
		rules:      rules,
		logger:     logger,
	}
}

// Detect runs the person pass and the property pass concurrently, then
// opens one conflict per reportable pair. If no pair is reportable the
// caller advances the package straight to ready-to-commit.
func (e *Engine) Detect(ctx context.Context, pkgID id.PackageID) (*Report, error) {
	var (
		personDetections   []conflict.Detection
		propertyDetections []conflict.Detection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		personDetections, err = e.detectPersons(gctx, pkgID)
		return err
	})
	g.Go(func() error {
		var err error
		propertyDetections, err = e.detectProperties(gctx, pkgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		PersonDuplicates:   len(personDetections),
		PropertyDuplicates: len(propertyDetections),
	}
	for _, d := range append(personDetections, propertyDetections...) {
		c, err := e.conflicts.Open(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("open conflict for package %s: %w", pkgID, err)
		}
		report.ConflictIDs = append(report.ConflictIDs, c.ID)
		if c.Closed() {
			report.AutoResolved++
		}
	}

	e.logger.InfoContext(ctx, "duplicate detection finished",
		"package_id", pkgID,
		"person_duplicates", report.PersonDuplicates,
		"property_duplicates", report.PropertyDuplicates,
		"auto_resolved", report.AutoResolved)
	return report, nil
}

func (e *Engine) detectPersons(ctx context.Context, pkgID id.PackageID) ([]conflict.Detection, error) {
	records, err := e.staging.ListByPackageKind(ctx, pkgID, id.KindPerson)
	if err != nil {
		return nil, fmt.Errorf("load staged persons: %w", err)
	}
	staged := make([]Features, 0, len(records))
	for _, r := range records {
		if !eligible(r) {
			continue
		}
		staged = append(staged, personFeatures(r))
	}
	if len(staged) == 0 {
		return nil, nil
	}

	existing, err := e.production.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("load production persons: %w", err)
	}
	candidates := make([]Features, 0, len(existing))
	for _, p := range existing {
		candidates = append(candidates, Features{
			Ref: conflict.EntityRef{
				Source: conflict.SourceProduction,
				ID:     p.ID.String(),
				Label:  p.FullName,
			},
			NationalID: p.NationalID,
			FullName:   p.FullName,
			Phone:      p.Phone,
		})
	}

	return e.comparePass(pkgID, conflict.TypePersonDuplicate, id.KindPerson, staged, candidates), nil
}

func (e *Engine) detectProperties(ctx context.Context, pkgID id.PackageID) ([]conflict.Detection, error) {
	records, err := e.staging.ListByPackageKind(ctx, pkgID, id.KindBuilding)
	if err != nil {
		return nil, fmt.Errorf("load staged buildings: %w", err)
	}
	staged := make([]Features, 0, len(records))
	for _, r := range records {
		if !eligible(r) {
			continue
		}
		staged = append(staged, buildingFeatures(r))
	}
	if len(staged) == 0 {
		return nil, nil
	}

	existing, err := e.production.ListBuildings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load production buildings: %w", err)
	}
	candidates := make([]Features, 0, len(existing))
	for _, b := range existing {
		candidates = append(candidates, Features{
			Ref: conflict.EntityRef{
				Source: conflict.SourceProduction,
				ID:     b.ID.String(),
				Label:  b.CompositeCode,
			},
			CompositeCode: b.CompositeCode,
			FullName:      b.Address,
		})
	}

	return e.comparePass(pkgID, conflict.TypePropertyDuplicate, id.KindBuilding, staged, candidates), nil
}

// comparePass runs staged-vs-production, then staged-vs-staged within the
// batch to catch two collectors independently surveying the same subject.
func (e *Engine) comparePass(pkgID id.PackageID, conflictType conflict.Type,
	kind id.EntityKind, staged, existing []Features) []conflict.Detection {
	var out []conflict.Detection
	for _, s := range staged {
		for _, p := range existing {
			if d, ok := e.pair(pkgID, conflictType, kind, s, p); ok {
				out = append(out, d)
			}
		}
	}
	for i := 0; i < len(staged); i++ {
		for j := i + 1; j < len(staged); j++ {
			if d, ok := e.pair(pkgID, conflictType, kind, staged[i], staged[j]); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func (e *Engine) pair(pkgID id.PackageID, conflictType conflict.Type,
	kind id.EntityKind, a, b Features) (conflict.Detection, bool) {
	m := Score(a, b, e.rules)
	if !m.Reportable {
		return conflict.Detection{}, false
	}

	comparison := make(map[string]conflict.FieldPair, len(m.Criteria))
	for _, c := range m.Criteria {
		comparison[c.Field] = conflict.FieldPair{First: c.First, Second: c.Second}
	}
	return conflict.Detection{
		PackageID:  pkgID,
		Type:       conflictType,
		EntityKind: kind,
		First:      a.Ref,
		Second:     b.Ref,
		Score:      m.Score,
		Confidence: m.Confidence,
		Description: fmt.Sprintf("possible duplicate %s: %q vs %q (score %.1f)",
			kind, a.Ref.Label, b.Ref.Label, m.Score),
		Criteria:   m.Criteria,
		Comparison: comparison,
	}, true
}

// eligible keeps only records that could actually reach production.
func eligible(r *staging.Record) bool {
	return r.Status == staging.StatusValid || r.Status == staging.StatusWarning
}

func personFeatures(r *staging.Record) Features {
	p := r.Person()
	return Features{
		Ref: conflict.EntityRef{
			Source: conflict.SourceStaging,
			ID:     r.ID.String(),
			Label:  p.FullName,
		},
		NationalID: p.NationalID,
		FullName:   p.FullName,
		Phone:      p.Phone,
	}
}

func buildingFeatures(r *staging.Record) Features {
	b := r.Building()
	return Features{
		Ref: conflict.EntityRef{
			Source: conflict.SourceStaging,
			ID:     r.ID.String(),
			Label:  b.CompositeCode,
		},
		CompositeCode: b.CompositeCode,
		FullName:      b.Address,
	}
}
