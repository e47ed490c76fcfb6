package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// EntityRelation exposes a foreign-key column as a traversable reference.
type EntityRelation struct {
	Column  string
	Kind    string
	Subtype string
}

// EntityTable maps one entity kind:subtype to the table that stores it.
type EntityTable struct {
	Table     string
	KeyColumn string
	Relations map[string]EntityRelation
}

// EntityRegistry is keyed by EntityRef.Key().
type EntityRegistry map[string]EntityTable

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate rejects table and column names that cannot be quoted safely.
func (reg EntityRegistry) Validate() error {
	for key, table := range reg {
		if !identPattern.MatchString(table.Table) {
			return fmt.Errorf("entity %s: invalid table %q", key, table.Table)
		}
		if table.KeyColumn != "" && !identPattern.MatchString(table.KeyColumn) {
			return fmt.Errorf("entity %s: invalid key column %q", key, table.KeyColumn)
		}
		for name, rel := range table.Relations {
			if !identPattern.MatchString(rel.Column) {
				return fmt.Errorf("entity %s relation %s: invalid column %q", key, name, rel.Column)
			}
			if rel.Kind == "" || rel.Subtype == "" {
				return fmt.Errorf("entity %s relation %s: kind and subtype are required", key, name)
			}
		}
	}
	return nil
}

// EntityRepository loads registered entities as generic records.
type EntityRepository struct {
	db       *sql.DB
	registry EntityRegistry
}

func NewEntityRepository(db *sql.DB, registry EntityRegistry) (*EntityRepository, error) {
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("entity registry: %w", err)
	}
	return &EntityRepository{db: db, registry: registry}, nil
}

func (r *EntityRepository) Resolve(ctx context.Context, ref domain.EntityRef) (domain.Entity, error) {
	table, ok := r.registry[ref.Key()]
	if !ok {
		return nil, domain.WrapError(domain.ErrEntityNotFound, "resolve entity", fmt.Errorf("no table registered for %s", ref.Key()))
	}
	keyColumn := table.KeyColumn
	if keyColumn == "" {
		keyColumn = "id"
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1 LIMIT 1`, quoteIdent(table.Table), quoteIdent(keyColumn))
	rows, err := r.db.QueryContext(ctx, query, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("load entity %s: %w", ref, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("entity columns %s: %w", ref, err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("load entity %s: %w", ref, err)
		}
		return nil, domain.WrapError(domain.ErrEntityNotFound, "resolve entity", errors.New(ref.String()))
	}

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan entity %s: %w", ref, err)
	}

	fields := make(map[string]any, len(columns)+len(table.Relations))
	for i, column := range columns {
		if raw, ok := values[i].([]byte); ok {
			fields[column] = string(raw)
			continue
		}
		fields[column] = values[i]
	}
	for name, rel := range table.Relations {
		v, ok := fields[rel.Column]
		if !ok || v == nil {
			fields[name] = nil
			continue
		}
		fields[name] = domain.EntityRef{Kind: rel.Kind, Subtype: rel.Subtype, ID: fmt.Sprint(v)}
	}
	return &domain.Record{Ref: ref, Fields: fields}, nil
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}
