package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// ErrTemplateNotFound is returned when the requested template id does not
// exist in the store.
var ErrTemplateNotFound = errors.New("template not found")

// Schema for the templates table. Applied on open; the validation_rules
// column is intentionally absent and probed separately, matching stores
// created by older tool versions.
const Schema = `
CREATE TABLE IF NOT EXISTS templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL DEFAULT 'single',
	page_count INTEGER NOT NULL DEFAULT 1,
	regions TEXT,
	column_lines TEXT,
	page_regions TEXT,
	page_column_lines TEXT,
	config TEXT,
	creation_date TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// Repository reads templates from a SQLite store. Reads are safe for
// concurrent use; SaveValidationRules is the only writer.
type Repository struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the template database at path.
func Open(path string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open template db: %w", err)
	}
	repo := NewRepository(db, logger)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply template schema: %w", err)
	}
	return repo, nil
}

// NewRepository wraps an existing database connection.
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, log: logger}
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// List returns id, name, type and page count of every stored template.
func (r *Repository) List(ctx context.Context) ([]Info, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, page_count FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.Name, &info.Type, &info.PageCount); err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Get loads one template by id, decoding its JSON columns. Optional
// multi-page fields default gracefully when NULL or absent.
func (r *Repository) Get(ctx context.Context, id int64) (*Template, error) {
	hasRules, err := r.hasValidationRulesColumn(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, name, type, page_count, regions, column_lines,
		page_regions, page_column_lines, config`
	if hasRules {
		query += `, validation_rules`
	}
	query += ` FROM templates WHERE id = ?`

	var (
		tpl                          Template
		regions, columnLines         sql.NullString
		pageRegions, pageColumnLines sql.NullString
		config, rules                sql.NullString
	)
	dest := []any{
		&tpl.ID, &tpl.Name, &tpl.Type, &tpl.PageCount,
		&regions, &columnLines, &pageRegions, &pageColumnLines, &config,
	}
	if hasRules {
		dest = append(dest, &rules)
	}

	err = r.db.QueryRowContext(ctx, query, id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %d: %w", id, err)
	}

	if err := decodeJSONColumn(regions, &tpl.Regions); err != nil {
		r.log.Warn("template regions column unreadable, treated as empty",
			"template", id, "error", err)
	}
	if err := decodeJSONColumn(columnLines, &tpl.ColumnLines); err != nil {
		r.log.Warn("template column_lines column unreadable, treated as empty",
			"template", id, "error", err)
	}
	if err := decodeJSONColumn(pageRegions, &tpl.PageRegions); err != nil {
		r.log.Warn("template page_regions column unreadable, treated as empty",
			"template", id, "error", err)
	}
	if err := decodeJSONColumn(pageColumnLines, &tpl.PageColumnLines); err != nil {
		r.log.Warn("template page_column_lines column unreadable, treated as empty",
			"template", id, "error", err)
	}
	if err := decodeJSONColumn(config, &tpl.Config); err != nil {
		r.log.Warn("template config column unreadable, treated as empty",
			"template", id, "error", err)
	}
	if rules.Valid && rules.String != "" {
		tpl.ValidationRules = json.RawMessage(rules.String)
	}
	if tpl.Type == "" {
		tpl.Type = TypeSingle
	}
	if tpl.PageCount <= 0 {
		tpl.PageCount = 1
	}
	return &tpl, nil
}

// SaveValidationRules persists the serialized rule map into the template
// row, adding the validation_rules column on first save if the store
// predates it.
func (r *Repository) SaveValidationRules(ctx context.Context, id int64, rules json.RawMessage) error {
	hasRules, err := r.hasValidationRulesColumn(ctx)
	if err != nil {
		return err
	}
	if !hasRules {
		if _, err := r.db.ExecContext(ctx,
			`ALTER TABLE templates ADD COLUMN validation_rules TEXT`); err != nil {
			return fmt.Errorf("add validation_rules column: %w", err)
		}
		r.log.Info("added validation_rules column to template store")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE templates SET validation_rules = ? WHERE id = ?`, string(rules), id)
	if err != nil {
		return fmt.Errorf("save validation rules for template %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrTemplateNotFound, id)
	}
	return nil
}

func (r *Repository) hasValidationRulesColumn(ctx context.Context) (bool, error) {
	rows, err := r.db.QueryContext(ctx, `PRAGMA table_info(templates)`)
	if err != nil {
		return false, fmt.Errorf("probe templates schema: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return false, fmt.Errorf("scan schema row: %w", err)
		}
		if name == "validation_rules" {
			return true, nil
		}
	}
	return false, rows.Err()
}

func decodeJSONColumn[T any](col sql.NullString, dest *T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}
