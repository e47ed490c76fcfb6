package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// AttributeRepository stores dynamic attribute definitions and the current
// value of each attribute per document.
type AttributeRepository struct {
	db *sql.DB
}

func NewAttributeRepository(db *sql.DB) *AttributeRepository {
	return &AttributeRepository{db: db}
}

func (r *AttributeRepository) Definitions(ctx context.Context, typeCode string) ([]domain.AttributeDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, type_code, code, label, data_type, choices, entity_kind, entity_subtype, required
FROM attribute_definitions
WHERE type_code = $1
ORDER BY code
`, typeCode)
	if err != nil {
		return nil, fmt.Errorf("list attribute definitions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AttributeDefinition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribute definitions: %w", err)
	}
	return out, nil
}

// ListByDocument returns every definition of the type, paired with the
// document's stored value when there is one.
func (r *AttributeRepository) ListByDocument(ctx context.Context, documentID int64, typeCode string) (domain.AttributeSet, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT d.id, d.type_code, d.code, d.label, d.data_type, d.choices, d.entity_kind, d.entity_subtype, d.required, v.raw
FROM attribute_definitions d
LEFT JOIN attribute_values v ON v.definition_id = d.id AND v.document_id = $1
WHERE d.type_code = $2
ORDER BY d.code
`, documentID, typeCode)
	if err != nil {
		return nil, fmt.Errorf("list document attributes: %w", err)
	}
	defer rows.Close()

	out := make(domain.AttributeSet)
	for rows.Next() {
		var raw sql.NullString
		def, err := scanDefinition(rows, &raw)
		if err != nil {
			return nil, err
		}
		out[def.Code] = domain.AttributeValue{Definition: def, Raw: raw.String}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document attributes: %w", err)
	}
	return out, nil
}

// Upsert supersedes stored values; empty values delete the row.
func (r *AttributeRepository) Upsert(ctx context.Context, documentID int64, values []domain.AttributeValue) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attributes tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, v := range values {
		if v.Definition.ID == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "upsert attributes", errors.New("definition id missing for "+v.Code()))
		}
		if !v.HasValue() {
			if _, err := tx.ExecContext(ctx, `
DELETE FROM attribute_values WHERE document_id = $1 AND definition_id = $2
`, documentID, v.Definition.ID); err != nil {
				return fmt.Errorf("delete attribute %s: %w", v.Code(), err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO attribute_values (document_id, definition_id, raw, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (document_id, definition_id) DO UPDATE
SET raw = EXCLUDED.raw, updated_at = EXCLUDED.updated_at
`, documentID, v.Definition.ID, v.Raw, now); err != nil {
			return fmt.Errorf("upsert attribute %s: %w", v.Code(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attributes tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner, extra ...any) (domain.AttributeDefinition, error) {
	var def domain.AttributeDefinition
	var dataType string
	var choicesRaw []byte

	dest := []any{
		&def.ID, &def.TypeCode, &def.Code, &def.Label, &dataType, &choicesRaw,
		&def.EntityKind, &def.EntitySubtype, &def.Required,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.AttributeDefinition{}, fmt.Errorf("scan attribute definition: %w", err)
	}
	def.DataType = domain.DataType(dataType)
	if len(choicesRaw) > 0 {
		if err := json.Unmarshal(choicesRaw, &def.Choices); err != nil {
			return domain.AttributeDefinition{}, fmt.Errorf("unmarshal choices of %s: %w", def.Code, err)
		}
	}
	return def, nil
}

// UpsertDefinition creates or replaces a definition keyed by type and code.
func (r *AttributeRepository) UpsertDefinition(ctx context.Context, def domain.AttributeDefinition) (int64, error) {
	choices := def.Choices
	if choices == nil {
		choices = []string{}
	}
	choicesRaw, err := json.Marshal(choices)
	if err != nil {
		return 0, fmt.Errorf("marshal choices of %s: %w", def.Code, err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
INSERT INTO attribute_definitions (type_code, code, label, data_type, choices, entity_kind, entity_subtype, required)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (type_code, code) DO UPDATE
SET label = EXCLUDED.label, data_type = EXCLUDED.data_type, choices = EXCLUDED.choices,
    entity_kind = EXCLUDED.entity_kind, entity_subtype = EXCLUDED.entity_subtype, required = EXCLUDED.required
RETURNING id
`, def.TypeCode, def.Code, def.Label, string(def.DataType), choicesRaw, def.EntityKind, def.EntitySubtype, def.Required).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert attribute definition %s.%s: %w", def.TypeCode, def.Code, err)
	}
	return id, nil
}
