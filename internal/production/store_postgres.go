package production

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// PostgresStore reads registry entities and manages assignment transfer
// status. All writes to entity tables go through the commit engine, not
// through this store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, national_id, full_name, phone, gender_code, household_id, created_at
		FROM prod_persons
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list production persons: %w", err)
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		var (
			p           Person
			personID    uuid.UUID
			householdID *uuid.UUID
		)
		if err := rows.Scan(&personID, &p.NationalID, &p.FullName, &p.Phone,
			&p.GenderCode, &householdID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan production person: %w", err)
		}
		p.ID = id.EntityID(personID)
		if householdID != nil {
			hid := id.EntityID(*householdID)
			p.HouseholdID = &hid
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate production persons: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListBuildings(ctx context.Context) ([]Building, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, composite_code, address, latitude, longitude, geometry, created_at
		FROM prod_buildings
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list production buildings: %w", err)
	}
	defer rows.Close()

	var out []Building
	for rows.Next() {
		var (
			b          Building
			buildingID uuid.UUID
		)
		if err := rows.Scan(&buildingID, &b.CompositeCode, &b.Address,
			&b.Latitude, &b.Longitude, &b.Geometry, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan production building: %w", err)
		}
		b.ID = id.EntityID(buildingID)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate production buildings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListDownloadable(ctx context.Context, collectorID id.CollectorID) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collector_id, building_id, area_name, transfer_status, assigned_at, transferred_at
		FROM building_assignments
		WHERE collector_id = $1 AND transfer_status IN ('pending', 'failed')
		ORDER BY assigned_at, id
	`, uuid.UUID(collectorID))
	if err != nil {
		return nil, fmt.Errorf("list downloadable assignments: %w", err)
	}
	defer rows.Close()

	var out []*Assignment
	for rows.Next() {
		var (
			a            Assignment
			assignmentID uuid.UUID
			collector    uuid.UUID
			buildingID   uuid.UUID
			status       string
		)
		if err := rows.Scan(&assignmentID, &collector, &buildingID, &a.AreaName,
			&status, &a.AssignedAt, &a.TransferredAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.ID = id.AssignmentID(assignmentID)
		a.CollectorID = id.CollectorID(collector)
		a.BuildingID = id.EntityID(buildingID)
		a.TransferStatus = TransferStatus(status)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

// MarkTransferred is monotonic: the WHERE clause skips already-transferred
// rows so repeated acknowledgments change nothing.
func (s *PostgresStore) MarkTransferred(ctx context.Context, assignmentID id.AssignmentID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE building_assignments
		SET transfer_status = 'transferred', transferred_at = $2
		WHERE id = $1 AND transfer_status <> 'transferred'
	`, uuid.UUID(assignmentID), at)
	if err != nil {
		return false, fmt.Errorf("mark assignment transferred: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark assignment transferred: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	// Distinguish "already transferred" from "no such assignment".
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM building_assignments WHERE id = $1)
	`, uuid.UUID(assignmentID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check assignment exists: %w", err)
	}
	if !exists {
		return false, sentinel.ErrNotFound
	}
	return false, nil
}

func (s *PostgresStore) GetBuilding(ctx context.Context, buildingID id.EntityID) (*Building, error) {
	var (
		b   Building
		bid uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, composite_code, address, latitude, longitude, geometry, created_at
		FROM prod_buildings
		WHERE id = $1
	`, uuid.UUID(buildingID)).Scan(&bid, &b.CompositeCode, &b.Address,
		&b.Latitude, &b.Longitude, &b.Geometry, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get production building: %w", err)
	}
	b.ID = id.EntityID(bid)
	return &b, nil
}

func (s *PostgresStore) ListUnitsByBuilding(ctx context.Context, buildingID id.EntityID) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, building_id, unit_code, floor, use_code, created_at
		FROM prod_units
		WHERE building_id = $1
		ORDER BY unit_code
	`, uuid.UUID(buildingID))
	if err != nil {
		return nil, fmt.Errorf("list building units: %w", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var (
			u      Unit
			unitID uuid.UUID
			bid    uuid.UUID
		)
		if err := rows.Scan(&unitID, &bid, &u.UnitCode, &u.Floor, &u.UseCode, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan building unit: %w", err)
		}
		u.ID = id.EntityID(unitID)
		u.BuildingID = id.EntityID(bid)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate building units: %w", err)
	}
	return out, nil
}
