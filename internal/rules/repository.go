package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TemplateInfo describes one stored template.
type TemplateInfo struct {
	Kind      TemplateKind
	Name      string
	UpdatedAt time.Time
}

// TemplateRepository persists shared templates.
// This abstraction allows different implementations (SQLite, mock, etc.).
type TemplateRepository interface {
	SaveHandlers(ctx context.Context, name string, hs []StateHandler) error
	SaveOperations(ctx context.Context, name string, ops []OperationDef) error
	Import(ctx context.Context, set TemplateSet) (int, error)
	Load(ctx context.Context) (TemplateSet, error)
	List(ctx context.Context) ([]TemplateInfo, error)
	Delete(ctx context.Context, kind TemplateKind, name string) error
}

// SQLiteTemplateRepository implements TemplateRepository using SQLite.
// Template bodies are stored as JSON.
type SQLiteTemplateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteTemplateRepository creates a new SQLite-backed template repository.
func NewSQLiteTemplateRepository(db *sql.DB) *SQLiteTemplateRepository {
	return &SQLiteTemplateRepository{db: db, now: time.Now}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveHandlers inserts or replaces a handler template.
func (r *SQLiteTemplateRepository) SaveHandlers(ctx context.Context, name string, hs []StateHandler) error {
	return r.save(ctx, r.db, KindHandler, name, hs)
}

// SaveOperations inserts or replaces an operation template.
func (r *SQLiteTemplateRepository) SaveOperations(ctx context.Context, name string, ops []OperationDef) error {
	return r.save(ctx, r.db, KindOperation, name, ops)
}

// Import stores every template in set in a single transaction and returns
// how many were written.
func (r *SQLiteTemplateRepository) Import(ctx context.Context, set TemplateSet) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	count := 0
	for _, name := range sortedTemplateNames(set.Handlers) {
		if err := r.save(ctx, tx, KindHandler, name, set.Handlers[name]); err != nil {
			return 0, err
		}
		count++
	}
	for _, name := range sortedTemplateNames(set.Operations) {
		if err := r.save(ctx, tx, KindOperation, name, set.Operations[name]); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return count, nil
}

func (r *SQLiteTemplateRepository) save(ctx context.Context, db execer, kind TemplateKind, name string, body any) error {
	if name == "" {
		return fmt.Errorf("%w: template name is empty", ErrInvalidHandler)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling %s template %q: %w", kind, name, err)
	}

	query := `
		INSERT INTO rule_templates (kind, name, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, name) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at`

	if _, err := db.ExecContext(ctx, query,
		string(kind),
		name,
		string(data),
		r.now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("saving %s template %q: %w", kind, name, err)
	}
	return nil
}

// Load reads every stored template into a TemplateSet.
func (r *SQLiteTemplateRepository) Load(ctx context.Context) (TemplateSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, name, body FROM rule_templates ORDER BY kind, name`)
	if err != nil {
		return TemplateSet{}, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	set := TemplateSet{
		Handlers:   make(map[string][]StateHandler),
		Operations: make(map[string][]OperationDef),
	}
	for rows.Next() {
		var kind, name, body string
		if err := rows.Scan(&kind, &name, &body); err != nil {
			return TemplateSet{}, fmt.Errorf("scanning template row: %w", err)
		}

		switch TemplateKind(kind) {
		case KindHandler:
			var hs []StateHandler
			if err := json.Unmarshal([]byte(body), &hs); err != nil {
				return TemplateSet{}, fmt.Errorf("unmarshalling handler template %q: %w", name, err)
			}
			set.Handlers[name] = hs
		case KindOperation:
			var ops []OperationDef
			if err := json.Unmarshal([]byte(body), &ops); err != nil {
				return TemplateSet{}, fmt.Errorf("unmarshalling operation template %q: %w", name, err)
			}
			set.Operations[name] = ops
		}
	}
	if err := rows.Err(); err != nil {
		return TemplateSet{}, fmt.Errorf("iterating templates: %w", err)
	}
	return set, nil
}

// List returns metadata for every stored template ordered by kind then name.
func (r *SQLiteTemplateRepository) List(ctx context.Context) ([]TemplateInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, name, updated_at FROM rule_templates ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var infos []TemplateInfo
	for rows.Next() {
		var info TemplateInfo
		var kind, updatedAt string
		if err := rows.Scan(&kind, &info.Name, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		info.Kind = TemplateKind(kind)
		info.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating templates: %w", err)
	}
	return infos, nil
}

// Delete removes a template.
func (r *SQLiteTemplateRepository) Delete(ctx context.Context, kind TemplateKind, name string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM rule_templates WHERE kind = ? AND name = ?`, string(kind), name)
	if err != nil {
		return fmt.Errorf("deleting %s template %q: %w", kind, name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return &TemplateNotFoundError{Kind: kind, Name: name}
	}
	return nil
}

func sortedTemplateNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
