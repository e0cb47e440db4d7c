package commit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"terrasync/internal/platform/metrics"
	"terrasync/internal/production"
	"terrasync/internal/staging"
	"terrasync/internal/validation"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
	"terrasync/pkg/requestcontext"
)

// Result of one commit attempt. A rolled-back attempt reports zero
// succeeded; partial completion only arises across retried attempts.
type Result struct {
	Succeeded     int
	Failed        int
	Skipped       int
	FailureReason string
	// Promoted maps each promoted staging record to its production id.
	Promoted map[id.RecordID]id.EntityID
}

// RolledBack reports whether the attempt failed and was discarded.
func (r *Result) RolledBack() bool {
	return r.FailureReason != ""
}

// Engine promotes approved staging records to production inside a single
// transaction, remapping package-local identifiers to freshly assigned
// production identifiers.
type Engine struct {
	staging staging.Store
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEngine(stagingStore staging.Store, store Store, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{staging: stagingStore, store: store, metrics: m, logger: logger}
}

func remapKey(kind id.EntityKind, originalID string) string {
	return string(kind) + "/" + originalID
}

// Commit runs one promotion attempt. Records with blocking errors make the
// whole call fail before any write; unapproved records are skipped. On any
// mid-transaction failure everything rolls back and the Result reports why.
func (e *Engine) Commit(ctx context.Context, pkgID id.PackageID) (*Result, error) {
	ctx, span := otel.Tracer("terrasync/commit").Start(ctx, "commit.package")
	defer span.End()
	span.SetAttributes(attribute.String("package_id", pkgID.String()))

	records, err := e.staging.ListByPackage(ctx, pkgID)
	if err != nil {
		return nil, fmt.Errorf("load staging partition: %w", err)
	}

	result := &Result{Promoted: make(map[id.RecordID]id.EntityID)}
	var committable []*staging.Record
	for _, r := range records {
		if r.Status == staging.StatusInvalid {
			return nil, fmt.Errorf("record %s has blocking errors: %w", r.ID, sentinel.ErrInvalidState)
		}
		if !r.Committable() {
			result.Skipped++
			continue
		}
		committable = append(committable, r)
	}

	// Assign every production id up front so circular references between
	// persons and households resolve from one complete remap table.
	remap := make(map[string]id.EntityID, len(committable))
	for _, r := range committable {
		remap[remapKey(r.Kind, r.OriginalID)] = id.NewEntityID()
	}

	byKind := make(map[id.EntityKind][]*staging.Record)
	for _, r := range committable {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin commit transaction: %w", err)
	}

	now := requestcontext.Now(ctx)
	for _, kind := range id.KindsInCommitOrder() {
		for _, r := range byKind[kind] {
			entityID := remap[remapKey(r.Kind, r.OriginalID)]
			if err := e.promote(ctx, tx, r, entityID, remap, now); err != nil {
				if rbErr := tx.Rollback(ctx); rbErr != nil {
					e.logger.ErrorContext(ctx, "commit rollback failed",
						"package_id", pkgID, "error", rbErr)
				}
				result.Failed = len(committable)
				result.Promoted = nil
				result.FailureReason = err.Error()
				e.countRecords("failed", result.Failed)
				e.logger.WarnContext(ctx, "commit attempt rolled back",
					"package_id", pkgID, "record_id", r.ID, "reason", err)
				return result, nil
			}
			result.Promoted[r.ID] = entityID
		}
	}

	if err := tx.Commit(ctx); err != nil {
		result.Failed = len(committable)
		result.Promoted = nil
		result.FailureReason = err.Error()
		e.countRecords("failed", result.Failed)
		return result, nil
	}
	result.Succeeded = len(committable)
	e.countRecords("promoted", result.Succeeded)
	e.countRecords("skipped", result.Skipped)

	// Traceability: each promoted record keeps its production id. This runs
	// after the transaction; a failure here leaves production correct and
	// only costs the back-reference.
	for _, r := range committable {
		entityID := result.Promoted[r.ID]
		r.ProductionID = &entityID
		if err := e.staging.Update(ctx, r); err != nil {
			e.logger.ErrorContext(ctx, "record production id write-back failed",
				"record_id", r.ID, "error", err)
		}
	}
	return result, nil
}

func (e *Engine) countRecords(label string, n int) {
	if e.metrics == nil || n == 0 {
		return
	}
	e.metrics.CommitRecords.WithLabelValues(label).Add(float64(n))
}

// resolve rewrites one package-local reference through the remap table.
func resolve(remap map[string]id.EntityID, kind id.EntityKind, originalID string) (id.EntityID, error) {
	entityID, ok := remap[remapKey(kind, originalID)]
	if !ok {
		return id.EntityID{}, fmt.Errorf("reference to %s %q cannot be remapped", kind, originalID)
	}
	return entityID, nil
}

func resolveOptional(remap map[string]id.EntityID, kind id.EntityKind, originalID string) (*id.EntityID, error) {
	if originalID == "" {
		return nil, nil
	}
	entityID, err := resolve(remap, kind, originalID)
	if err != nil {
		return nil, err
	}
	return &entityID, nil
}

func (e *Engine) promote(ctx context.Context, tx Tx, r *staging.Record,
	entityID id.EntityID, remap map[string]id.EntityID, now time.Time) error {
	switch r.Kind {
	case id.KindBuilding:
		b := r.Building()
		return tx.InsertBuilding(ctx, production.Building{
			ID:            entityID,
			CompositeCode: b.CompositeCode,
			Address:       b.Address,
			Latitude:      b.Latitude,
			Longitude:     b.Longitude,
			Geometry:      b.Geometry,
			CreatedAt:     now,
		})
	case id.KindUnit:
		u := r.Unit()
		buildingID, err := resolve(remap, id.KindBuilding, u.BuildingOriginalID)
		if err != nil {
			return err
		}
		return tx.InsertUnit(ctx, production.Unit{
			ID:         entityID,
			BuildingID: buildingID,
			UnitCode:   u.UnitCode,
			Floor:      u.Floor,
			UseCode:    u.UseCode,
			CreatedAt:  now,
		})
	case id.KindPerson:
		p := r.Person()
		householdID, err := resolveOptional(remap, id.KindHousehold, p.HouseholdOriginalID)
		if err != nil {
			return err
		}
		return tx.InsertPerson(ctx, production.Person{
			ID:          entityID,
			NationalID:  p.NationalID,
			FullName:    p.FullName,
			Phone:       p.Phone,
			GenderCode:  p.GenderCode,
			HouseholdID: householdID,
			CreatedAt:   now,
		})
	case id.KindHousehold:
		h := r.Household()
		headID, err := resolveOptional(remap, id.KindPerson, h.HeadPersonOriginalID)
		if err != nil {
			return err
		}
		return tx.InsertHousehold(ctx, production.Household{
			ID:           entityID,
			HeadPersonID: headID,
			DeclaredSize: h.DeclaredSize,
			MaleCount:    h.MaleCount,
			FemaleCount:  h.FemaleCount,
			CreatedAt:    now,
		})
	case id.KindRelation:
		rel := r.Relation()
		personID, err := resolve(remap, id.KindPerson, rel.PersonOriginalID)
		if err != nil {
			return err
		}
		unitID, err := resolve(remap, id.KindUnit, rel.UnitOriginalID)
		if err != nil {
			return err
		}
		return tx.InsertRelation(ctx, production.Relation{
			ID:           entityID,
			PersonID:     personID,
			UnitID:       unitID,
			RelationCode: rel.RelationCode,
			SharePercent: rel.SharePercent,
			CreatedAt:    now,
		})
	case id.KindEvidence:
		ev := r.Evidence()
		relationID, err := resolveOptional(remap, id.KindRelation, ev.RelationOriginalID)
		if err != nil {
			return err
		}
		claimID, err := resolveOptional(remap, id.KindClaim, ev.ClaimOriginalID)
		if err != nil {
			return err
		}
		return tx.InsertEvidence(ctx, production.Evidence{
			ID:         entityID,
			RelationID: relationID,
			ClaimID:    claimID,
			KindCode:   ev.KindCode,
			FileRef:    ev.FileRef,
			CreatedAt:  now,
		})
	case id.KindClaim:
		c := r.Claim()
		claimantID, err := resolve(remap, id.KindPerson, c.ClaimantOriginalID)
		if err != nil {
			return err
		}
		unitID, err := resolve(remap, id.KindUnit, c.UnitOriginalID)
		if err != nil {
			return err
		}
		// Imported claims always enter the lifecycle at the single
		// permitted initial state, whatever the device sent.
		return tx.InsertClaim(ctx, production.Claim{
			ID:         entityID,
			ClaimantID: claimantID,
			UnitID:     unitID,
			Status:     validation.ImportClaimStatus,
			Stage:      validation.ImportClaimStage,
			CreatedAt:  now,
		})
	case id.KindSurvey:
		sv := r.Survey()
		buildingID, err := resolve(remap, id.KindBuilding, sv.BuildingOriginalID)
		if err != nil {
			return err
		}
		return tx.InsertSurvey(ctx, production.Survey{
			ID:         entityID,
			BuildingID: buildingID,
			SurveyedAt: sv.SurveyedAt,
			Notes:      sv.Notes,
			CreatedAt:  now,
		})
	default:
		return fmt.Errorf("unknown staged kind %q", r.Kind)
	}
}
