package vocabulary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

// PostgresStore persists vocabularies in the vocabularies table, with the
// value list as a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, name string) (*Vocabulary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, label_en, label_ar, version, category, is_system, allow_custom_values, vals
		FROM vocabularies
		WHERE name = $1
	`, name)
	vocab, err := scanVocabulary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get vocabulary %s: %w", name, err)
	}
	return vocab, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Vocabulary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, label_en, label_ar, version, category, is_system, allow_custom_values, vals
		FROM vocabularies
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list vocabularies: %w", err)
	}
	defer rows.Close()

	var out []Vocabulary
	for rows.Next() {
		vocab, err := scanVocabulary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vocabulary: %w", err)
		}
		out = append(out, *vocab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vocabularies: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, vocab *Vocabulary) error {
	values, err := json.Marshal(vocab.Values)
	if err != nil {
		return fmt.Errorf("marshal vocabulary values: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vocabularies (name, label_en, label_ar, version, category, is_system, allow_custom_values, vals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			label_en = EXCLUDED.label_en,
			label_ar = EXCLUDED.label_ar,
			version = EXCLUDED.version,
			category = EXCLUDED.category,
			is_system = EXCLUDED.is_system,
			allow_custom_values = EXCLUDED.allow_custom_values,
			vals = EXCLUDED.vals
	`, vocab.Name, vocab.LabelEN, vocab.LabelAR, vocab.Version.String(),
		vocab.Category, vocab.IsSystem, vocab.AllowCustomValues, values)
	if err != nil {
		return fmt.Errorf("save vocabulary %s: %w", vocab.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVocabulary(row rowScanner) (*Vocabulary, error) {
	var (
		vocab      Vocabulary
		rawVersion string
		rawValues  []byte
	)
	err := row.Scan(&vocab.Name, &vocab.LabelEN, &vocab.LabelAR, &rawVersion,
		&vocab.Category, &vocab.IsSystem, &vocab.AllowCustomValues, &rawValues)
	if err != nil {
		return nil, err
	}
	version, err := id.ParseSemVer(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("stored version for %s: %w", vocab.Name, err)
	}
	vocab.Version = version
	if err := json.Unmarshal(rawValues, &vocab.Values); err != nil {
		return nil, fmt.Errorf("unmarshal values for %s: %w", vocab.Name, err)
	}
	return &vocab, nil
}
