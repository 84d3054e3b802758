package knowledge

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteLookup is a Lookup backed by a SQLite template index.
type SQLiteLookup struct {
	db *sql.DB
}

// OpenSQLite creates or opens a template index at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during imports
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func OpenSQLite(path string) (*SQLiteLookup, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteLookup{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteLookup) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Import stores templates, replacing entries with the same template id.
// All templates are written in one transaction.
func (s *SQLiteLookup) Import(ctx context.Context, templates []Template) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, t := range templates {
		if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE template_id = ? OR uuid = ?`,
			t.TemplateID, t.UUID.String()); err != nil {
			return fmt.Errorf("replace template %s: %w", t.TemplateID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO templates (uuid, template_id) VALUES (?, ?)`,
			t.UUID.String(), t.TemplateID); err != nil {
			return fmt.Errorf("insert template %s: %w", t.TemplateID, err)
		}
		for _, a := range dedupe(t.Archetypes) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO template_archetypes (template_uuid, archetype_id) VALUES (?, ?)`,
				t.UUID.String(), a); err != nil {
				return fmt.Errorf("insert archetype %s of %s: %w", a, t.TemplateID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteLookup) TemplatesContaining(ctx context.Context, path []string) ([]Template, error) {
	path = dedupe(path)
	query := `SELECT uuid, template_id FROM templates t`
	var args []any
	if len(path) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(path)), ",")
		query += fmt.Sprintf(`
		WHERE (SELECT COUNT(*) FROM template_archetypes a
		       WHERE a.template_uuid = t.uuid AND a.archetype_id IN (%s)) = ?`, placeholders)
		for _, p := range path {
			args = append(args, p)
		}
		args = append(args, len(path))
	}
	query += ` ORDER BY template_id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var id, templateID string
		if err := rows.Scan(&id, &templateID); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		u, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", templateID, err)
		}
		out = append(out, Template{UUID: u, TemplateID: templateID})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	for i := range out {
		archetypes, err := s.archetypes(ctx, out[i].UUID)
		if err != nil {
			return nil, err
		}
		out[i].Archetypes = archetypes
	}
	return out, nil
}

func (s *SQLiteLookup) archetypes(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT archetype_id FROM template_archetypes
		WHERE template_uuid = ?
		ORDER BY archetype_id COLLATE BINARY ASC
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query archetypes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan archetype: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteLookup) TemplateUUID(ctx context.Context, templateID string) (uuid.UUID, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT uuid FROM templates WHERE template_id = ?`, templateID).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("query template %s: %w", templateID, err)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("template %s: %w", templateID, err)
	}
	return u, true, nil
}

func (s *SQLiteLookup) TemplateIDs(ctx context.Context) (map[uuid.UUID]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uuid, template_id FROM templates`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var id, templateID string
		if err := rows.Scan(&id, &templateID); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		u, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", templateID, err)
		}
		out[u] = templateID
	}
	return out, rows.Err()
}

func dedupe(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
