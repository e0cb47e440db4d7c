package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// PostgresStore persists import packages. The unique index on checksum makes
// CreateIfNew atomic without an explicit lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const packageColumns = `id, package_number, file_name, file_size, created_at, exported_at,
	collector_id, device_id, checksum, signature_present, signature_valid,
	schema_version, schema_valid, record_counts, vocab_versions, vocab_compatible,
	vocab_issues, error_count, warning_count, level_results, conflict_count,
	conflicts_resolved, commit_succeeded, commit_failed, commit_skipped,
	status, status_reason`

func (s *PostgresStore) CreateIfNew(ctx context.Context, pkg *ImportPackage) (*ImportPackage, bool, error) {
	cols, err := marshalPackage(pkg)
	if err != nil {
		return nil, false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_packages (`+packageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		ON CONFLICT (checksum) DO NOTHING
	`, cols...)
	if err != nil {
		return nil, false, fmt.Errorf("create import package: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create import package: %w", err)
	}
	if affected == 1 {
		return pkg, true, nil
	}

	existing, err := s.getByChecksum(ctx, pkg.Checksum)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, pkgID id.PackageID) (*ImportPackage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+packageColumns+` FROM import_packages WHERE id = $1
	`, uuid.UUID(pkgID))
	pkg, err := scanPackage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get import package: %w", err)
	}
	return pkg, nil
}

func (s *PostgresStore) getByChecksum(ctx context.Context, checksum string) (*ImportPackage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+packageColumns+` FROM import_packages WHERE checksum = $1
	`, checksum)
	pkg, err := scanPackage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get import package by checksum: %w", err)
	}
	return pkg, nil
}

func (s *PostgresStore) Update(ctx context.Context, pkg *ImportPackage) error {
	cols, err := marshalPackage(pkg)
	if err != nil {
		return err
	}
	// Column order in marshalPackage matches packageColumns; $1 is the key.
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_packages SET
			package_number = $2, file_name = $3, file_size = $4, created_at = $5,
			exported_at = $6, collector_id = $7, device_id = $8, checksum = $9,
			signature_present = $10, signature_valid = $11, schema_version = $12,
			schema_valid = $13, record_counts = $14, vocab_versions = $15,
			vocab_compatible = $16, vocab_issues = $17, error_count = $18,
			warning_count = $19, level_results = $20, conflict_count = $21,
			conflicts_resolved = $22, commit_succeeded = $23, commit_failed = $24,
			commit_skipped = $25, status = $26, status_reason = $27
		WHERE id = $1
	`, cols...)
	if err != nil {
		return fmt.Errorf("update import package: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update import package: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*ImportPackage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+` FROM import_packages
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import packages: %w", err)
	}
	defer rows.Close()

	var out []*ImportPackage
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import package: %w", err)
		}
		out = append(out, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import packages: %w", err)
	}
	return out, nil
}

func marshalPackage(pkg *ImportPackage) ([]any, error) {
	recordCounts, err := json.Marshal(pkg.RecordCounts)
	if err != nil {
		return nil, fmt.Errorf("marshal record counts: %w", err)
	}
	vocabVersions, err := json.Marshal(pkg.VocabVersions)
	if err != nil {
		return nil, fmt.Errorf("marshal vocab versions: %w", err)
	}
	vocabIssues, err := json.Marshal(pkg.VocabIssues)
	if err != nil {
		return nil, fmt.Errorf("marshal vocab issues: %w", err)
	}
	levelResults, err := json.Marshal(pkg.LevelResults)
	if err != nil {
		return nil, fmt.Errorf("marshal level results: %w", err)
	}

	var collectorID any
	if !pkg.CollectorID.IsNil() {
		collectorID = uuid.UUID(pkg.CollectorID)
	}
	var exportedAt any
	if !pkg.ExportedAt.IsZero() {
		exportedAt = pkg.ExportedAt
	}

	return []any{
		uuid.UUID(pkg.ID), pkg.PackageNumber, pkg.FileName, pkg.FileSize,
		pkg.CreatedAt, exportedAt, collectorID, pkg.DeviceID, pkg.Checksum,
		pkg.SignaturePresent, pkg.SignatureValid, pkg.SchemaVersion,
		pkg.SchemaValid, string(recordCounts), string(vocabVersions),
		pkg.VocabCompatible, string(vocabIssues), pkg.ErrorCount,
		pkg.WarningCount, string(levelResults), pkg.ConflictCount,
		pkg.ConflictsResolved, pkg.CommitSucceeded, pkg.CommitFailed,
		pkg.CommitSkipped, string(pkg.Status), pkg.StatusReason,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*ImportPackage, error) {
	var (
		pkg           ImportPackage
		pkgID         uuid.UUID
		exportedAt    sql.NullTime
		collectorID   *uuid.UUID
		deviceID      sql.NullString
		recordCounts  []byte
		vocabVersions []byte
		vocabIssues   []byte
		levelResults  []byte
		status        string
	)
	if err := row.Scan(&pkgID, &pkg.PackageNumber, &pkg.FileName, &pkg.FileSize,
		&pkg.CreatedAt, &exportedAt, &collectorID, &deviceID, &pkg.Checksum,
		&pkg.SignaturePresent, &pkg.SignatureValid, &pkg.SchemaVersion,
		&pkg.SchemaValid, &recordCounts, &vocabVersions, &pkg.VocabCompatible,
		&vocabIssues, &pkg.ErrorCount, &pkg.WarningCount, &levelResults,
		&pkg.ConflictCount, &pkg.ConflictsResolved, &pkg.CommitSucceeded,
		&pkg.CommitFailed, &pkg.CommitSkipped, &status, &pkg.StatusReason,
	); err != nil {
		return nil, err
	}
	pkg.ID = id.PackageID(pkgID)
	if exportedAt.Valid {
		pkg.ExportedAt = exportedAt.Time
	}
	if collectorID != nil {
		pkg.CollectorID = id.CollectorID(*collectorID)
	}
	pkg.DeviceID = deviceID.String
	pkg.Status = Status(status)
	if err := json.Unmarshal(recordCounts, &pkg.RecordCounts); err != nil {
		return nil, fmt.Errorf("unmarshal record counts: %w", err)
	}
	if err := json.Unmarshal(vocabVersions, &pkg.VocabVersions); err != nil {
		return nil, fmt.Errorf("unmarshal vocab versions: %w", err)
	}
	if err := json.Unmarshal(vocabIssues, &pkg.VocabIssues); err != nil {
		return nil, fmt.Errorf("unmarshal vocab issues: %w", err)
	}
	if err := json.Unmarshal(levelResults, &pkg.LevelResults); err != nil {
		return nil, fmt.Errorf("unmarshal level results: %w", err)
	}
	return &pkg, nil
}
