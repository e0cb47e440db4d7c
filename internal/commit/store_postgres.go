package commit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"terrasync/internal/production"
	id "terrasync/pkg/domain"
)

// PostgresStore is the only writer of the production entity tables. It uses
// a pgx pool so each commit attempt holds one real database transaction;
// racing packages serialize (or fail) on the registry's unique constraints.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin promotion transaction: %w", err)
	}
	return &pgxTx{tx: tx}, nil
}

type pgxTx struct {
	tx pgx.Tx
}

func optionalID(entityID *id.EntityID) any {
	if entityID == nil {
		return nil
	}
	return uuid.UUID(*entityID)
}

func (t *pgxTx) InsertBuilding(ctx context.Context, b production.Building) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_buildings (id, composite_code, address, latitude, longitude, geometry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(b.ID), b.CompositeCode, b.Address, b.Latitude, b.Longitude,
		b.Geometry, b.CreatedAt); err != nil {
		return fmt.Errorf("insert building %s: %w", b.CompositeCode, err)
	}
	return nil
}

func (t *pgxTx) InsertUnit(ctx context.Context, u production.Unit) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_units (id, building_id, unit_code, floor, use_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(u.ID), uuid.UUID(u.BuildingID), u.UnitCode, u.Floor,
		u.UseCode, u.CreatedAt); err != nil {
		return fmt.Errorf("insert unit %s: %w", u.UnitCode, err)
	}
	return nil
}

func (t *pgxTx) InsertPerson(ctx context.Context, p production.Person) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_persons (id, national_id, full_name, phone, gender_code, household_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(p.ID), p.NationalID, p.FullName, p.Phone, p.GenderCode,
		optionalID(p.HouseholdID), p.CreatedAt); err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (t *pgxTx) InsertHousehold(ctx context.Context, h production.Household) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_households (id, head_person_id, declared_size, male_count, female_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(h.ID), optionalID(h.HeadPersonID), h.DeclaredSize,
		h.MaleCount, h.FemaleCount, h.CreatedAt); err != nil {
		return fmt.Errorf("insert household: %w", err)
	}
	return nil
}

func (t *pgxTx) InsertRelation(ctx context.Context, r production.Relation) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_relations (id, person_id, unit_id, relation_code, share_percent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(r.ID), uuid.UUID(r.PersonID), uuid.UUID(r.UnitID),
		r.RelationCode, r.SharePercent, r.CreatedAt); err != nil {
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

func (t *pgxTx) InsertEvidence(ctx context.Context, e production.Evidence) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_evidence (id, relation_id, claim_id, kind_code, file_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(e.ID), optionalID(e.RelationID), optionalID(e.ClaimID),
		e.KindCode, e.FileRef, e.CreatedAt); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (t *pgxTx) InsertClaim(ctx context.Context, c production.Claim) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_claims (id, claimant_id, unit_id, status, stage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(c.ID), uuid.UUID(c.ClaimantID), uuid.UUID(c.UnitID),
		c.Status, c.Stage, c.CreatedAt); err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (t *pgxTx) InsertSurvey(ctx context.Context, s production.Survey) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO prod_surveys (id, building_id, surveyed_at, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(s.ID), uuid.UUID(s.BuildingID), s.SurveyedAt, s.Notes,
		s.CreatedAt); err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit promotion transaction: %w", err)
	}
	return nil
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("rollback promotion transaction: %w", err)
	}
	return nil
}
