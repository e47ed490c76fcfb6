package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker and CLI startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_types (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	filename_pattern TEXT NOT NULL DEFAULT '',
	code_pattern TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	code TEXT NOT NULL DEFAULT '',
	type_code TEXT REFERENCES document_types(code),
	reference_date DATE,
	description TEXT NOT NULL DEFAULT '',
	original_filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	resolved_filename TEXT,
	client_ref TEXT,
	file_set_ref TEXT,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	predicted_type TEXT,
	confidence_score DOUBLE PRECISION,
	confidence_level TEXT,
	classification_method TEXT,
	classification_reasoning TEXT,
	rule_scores JSONB NOT NULL DEFAULT '{}'::jsonb,
	classified_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_type_code ON documents(type_code);

CREATE TABLE IF NOT EXISTS attribute_definitions (
	id BIGSERIAL PRIMARY KEY,
	type_code TEXT NOT NULL REFERENCES document_types(code),
	code TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	data_type TEXT NOT NULL,
	choices JSONB NOT NULL DEFAULT '[]'::jsonb,
	entity_kind TEXT NOT NULL DEFAULT '',
	entity_subtype TEXT NOT NULL DEFAULT '',
	required BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (type_code, code)
);

CREATE TABLE IF NOT EXISTS attribute_values (
	document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	definition_id BIGINT NOT NULL REFERENCES attribute_definitions(id) ON DELETE CASCADE,
	raw TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, definition_id)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	code, type_code, reference_date, description, original_filename, storage_path,
	client_ref, file_set_ref, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id
`,
		doc.Code, nullString(doc.TypeCode), nullDate(doc.ReferenceDate), doc.Description, doc.OriginalFilename,
		doc.StoragePath, nullRef(doc.Client), nullRef(doc.FileSet), string(doc.Status), doc.Error,
		doc.CreatedAt, doc.UpdatedAt,
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, code, type_code, reference_date, description, original_filename, storage_path,
	resolved_filename, client_ref, file_set_ref, status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var typeCode, resolved, clientRef, fileSetRef sql.NullString
	var refDate sql.NullTime
	var status string

	err := row.Scan(
		&doc.ID, &doc.Code, &typeCode, &refDate, &doc.Description, &doc.OriginalFilename, &doc.StoragePath,
		&resolved, &clientRef, &fileSetRef, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.TypeCode = typeCode.String
	doc.ResolvedFilename = resolved.String
	doc.Status = domain.DocumentStatus(status)
	if refDate.Valid {
		t := refDate.Time
		doc.ReferenceDate = &t
	}
	if doc.Client, err = parseRef(clientRef); err != nil {
		return nil, fmt.Errorf("scan document client: %w", err)
	}
	if doc.FileSet, err = parseRef(fileSetRef); err != nil {
		return nil, fmt.Errorf("scan document file set: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res, "update document status", id)
}

// SaveDecision stores the classifier output. Error decisions and decisions
// saved without assignType leave the document's type untouched.
func (r *DocumentRepository) SaveDecision(ctx context.Context, id int64, decision domain.Decision, assignType bool) error {
	scores, err := json.Marshal(decision.RuleScores)
	if err != nil {
		return fmt.Errorf("marshal rule scores: %w", err)
	}
	if decision.RuleScores == nil {
		scores = []byte("{}")
	}

	var typeCode sql.NullString
	if assignType && decision.Method != domain.MethodError {
		typeCode = nullString(decision.PredictedType)
	}
	reasoning := decision.Reasoning
	if decision.Error != "" {
		reasoning = decision.Error
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET predicted_type = $2, confidence_score = $3, confidence_level = $4, classification_method = $5,
	classification_reasoning = $6, rule_scores = $7, classified_at = $8,
	type_code = COALESCE($9, type_code), updated_at = $10
WHERE id = $1
`, id, decision.PredictedType, decision.ConfidenceScore, string(decision.ConfidenceLevel), string(decision.Method),
		reasoning, scores, decision.DecidedAt, typeCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return requireAffected(res, "save decision", id)
}

// SaveCode stores a code generated from the type's code pattern.
func (r *DocumentRepository) SaveCode(ctx context.Context, id int64, code string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET code = $2, updated_at = $3
WHERE id = $1
`, id, code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save document code: %w", err)
	}
	return requireAffected(res, "save document code", id)
}

func (r *DocumentRepository) SaveResolvedFilename(ctx context.Context, id int64, filename string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET resolved_filename = $2, updated_at = $3
WHERE id = $1
`, id, filename, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save resolved filename: %w", err)
	}
	return requireAffected(res, "save resolved filename", id)
}

func requireAffected(res sql.Result, op string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, errors.New("id="+strconv.FormatInt(id, 10)))
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullRef(ref *domain.EntityRef) sql.NullString {
	if ref == nil {
		return sql.NullString{}
	}
	return nullString(ref.String())
}

func parseRef(s sql.NullString) (*domain.EntityRef, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	ref, err := domain.ParseEntityRef(s.String)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
