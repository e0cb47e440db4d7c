package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// PostgresStore persists staging rows. Kind-specific payloads are stored as
// JSONB; the typed form is rebuilt on read.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) BulkInsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin staging insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("staging_records",
		"id", "package_id", "kind", "original_id", "payload",
		"validation_status", "errors", "warnings", "approved", "staged_at", "production_id"))
	if err != nil {
		return fmt.Errorf("prepare staging copy: %w", err)
	}

	for _, r := range records {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", r.Kind, err)
		}
		errs, warns, err := marshalFindings(r)
		if err != nil {
			return err
		}
		var productionID any
		if r.ProductionID != nil {
			productionID = uuid.UUID(*r.ProductionID)
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.UUID(r.ID), uuid.UUID(r.PackageID), r.Kind.String(), r.OriginalID,
			string(payload), string(r.Status), string(errs), string(warns),
			r.Approved, r.StagedAt, productionID,
		); err != nil {
			return fmt.Errorf("copy staging row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush staging copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close staging copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit staging insert: %w", err)
	}
	return nil
}

const recordColumns = `id, package_id, kind, original_id, payload,
	validation_status, errors, warnings, approved, staged_at, production_id`

func (s *PostgresStore) ListByPackage(ctx context.Context, pkgID id.PackageID) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM staging_records
		WHERE package_id = $1
		ORDER BY staged_at, id
	`, uuid.UUID(pkgID))
	if err != nil {
		return nil, fmt.Errorf("list staging records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListByPackageKind(ctx context.Context, pkgID id.PackageID, kind id.EntityKind) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM staging_records
		WHERE package_id = $1 AND kind = $2
		ORDER BY staged_at, id
	`, uuid.UUID(pkgID), kind.String())
	if err != nil {
		return nil, fmt.Errorf("list staging records by kind: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) Update(ctx context.Context, record *Record) error {
	errs, warns, err := marshalFindings(record)
	if err != nil {
		return err
	}
	var productionID any
	if record.ProductionID != nil {
		productionID = uuid.UUID(*record.ProductionID)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE staging_records
		SET validation_status = $2, errors = $3, warnings = $4,
		    approved = $5, production_id = $6
		WHERE id = $1
	`, uuid.UUID(record.ID), string(record.Status), string(errs), string(warns),
		record.Approved, productionID)
	if err != nil {
		return fmt.Errorf("update staging record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staging record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByPackage(ctx context.Context, pkgID id.PackageID) (map[id.EntityKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM staging_records
		WHERE package_id = $1
		GROUP BY kind
	`, uuid.UUID(pkgID))
	if err != nil {
		return nil, fmt.Errorf("count staging records: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.EntityKind]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan staging count: %w", err)
		}
		counts[id.EntityKind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) DeleteByPackage(ctx context.Context, pkgID id.PackageID) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM staging_records WHERE package_id = $1
	`, uuid.UUID(pkgID)); err != nil {
		return fmt.Errorf("delete staging partition: %w", err)
	}
	return nil
}

func marshalFindings(r *Record) (errs, warns []byte, err error) {
	errs, err = json.Marshal(nonNilFindings(r.Errors))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal errors: %w", err)
	}
	warns, err = json.Marshal(nonNilFindings(r.Warnings))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal warnings: %w", err)
	}
	return errs, warns, nil
}

func nonNilFindings(f []Finding) []Finding {
	if f == nil {
		return []Finding{}
	}
	return f
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		var (
			r            Record
			recordID     uuid.UUID
			packageID    uuid.UUID
			kind         string
			status       string
			payload      []byte
			errsRaw      []byte
			warnsRaw     []byte
			productionID *uuid.UUID
		)
		if err := rows.Scan(&recordID, &packageID, &kind, &r.OriginalID, &payload,
			&status, &errsRaw, &warnsRaw, &r.Approved, &r.StagedAt, &productionID); err != nil {
			return nil, fmt.Errorf("scan staging record: %w", err)
		}
		r.ID = id.RecordID(recordID)
		r.PackageID = id.PackageID(packageID)
		r.Kind = id.EntityKind(kind)
		r.Status = ValidationStatus(status)
		if err := json.Unmarshal(errsRaw, &r.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
		if err := json.Unmarshal(warnsRaw, &r.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
		if productionID != nil {
			pid := id.EntityID(*productionID)
			r.ProductionID = &pid
		}
		decoded, err := decodePayload(r.Kind, payload)
		if err != nil {
			return nil, err
		}
		r.Payload = decoded
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging records: %w", err)
	}
	return out, nil
}
