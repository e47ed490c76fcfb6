package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// DocumentTypeRepository serves per-type naming patterns.
type DocumentTypeRepository struct {
	db *sql.DB
}

func NewDocumentTypeRepository(db *sql.DB) *DocumentTypeRepository {
	return &DocumentTypeRepository{db: db}
}

func (r *DocumentTypeRepository) DocumentType(ctx context.Context, code string) (*domain.DocumentType, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT code, name, filename_pattern, code_pattern
FROM document_types
WHERE code = $1
`, code)

	var t domain.DocumentType
	if err := row.Scan(&t.Code, &t.Name, &t.FilenamePattern, &t.CodePattern); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document type", fmt.Errorf("code=%s", code))
		}
		return nil, fmt.Errorf("scan document type: %w", err)
	}
	return &t, nil
}

// Upsert creates or replaces a document type definition.
func (r *DocumentTypeRepository) Upsert(ctx context.Context, t domain.DocumentType) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_types (code, name, filename_pattern, code_pattern)
VALUES ($1,$2,$3,$4)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name, filename_pattern = EXCLUDED.filename_pattern, code_pattern = EXCLUDED.code_pattern
`, t.Code, t.Name, t.FilenamePattern, t.CodePattern)
	if err != nil {
		return fmt.Errorf("upsert document type: %w", err)
	}
	return nil
}
