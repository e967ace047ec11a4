package table

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteTable is the table that holds sweep rows.
const SQLiteTable = "results"

// SQLiteSink appends rows to the results table of a SQLite database. Every
// column is TEXT so values keep the spelling they had on the command line.
type SQLiteSink struct {
	db      *sql.DB
	path    string
	policy  SchemaPolicy
	columns []string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, policy SchemaPolicy) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	columns, err := tableColumns(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to inspect results database %s: %w", path, err)
	}

	return &SQLiteSink{db: db, path: path, policy: policy, columns: columns}, nil
}

// Columns returns the current column names.
func (s *SQLiteSink) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Append inserts row, creating or widening the table as needed. Columns a row
// does not carry are stored as NULL.
func (s *SQLiteSink) Append(row Row) error {
	if err := row.validate(); err != nil {
		return err
	}
	if a, b, ok := row.foldedDuplicate(); ok {
		return fmt.Errorf("row has columns %q and %q, which SQLite treats as one", a, b)
	}

	if len(s.columns) == 0 {
		defs := make([]string, len(row))
		for i, f := range row {
			defs[i] = quoteIdent(f.Name) + " TEXT"
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(SQLiteTable), strings.Join(defs, ", "))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create results table in %s: %w", s.path, err)
		}
		s.columns = row.Names()
	} else if missing := missingColumns(s.columns, row, true); len(missing) > 0 {
		if s.policy == StrictSchema {
			return fmt.Errorf("%w: %s has no column(s) %s", ErrSchemaMismatch, s.path, strings.Join(missing, ", "))
		}
		for _, name := range missing {
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdent(SQLiteTable), quoteIdent(name))
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to add column %q to %s: %w", name, s.path, err)
			}
			s.columns = append(s.columns, name)
		}
	}

	names := make([]string, len(row))
	marks := make([]string, len(row))
	args := make([]any, len(row))
	for i, f := range row {
		names[i] = quoteIdent(f.Name)
		marks[i] = "?"
		args[i] = f.Value
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(SQLiteTable), strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return fmt.Errorf("failed to insert row into %s: %w", s.path, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func tableColumns(db *sql.DB) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(SQLiteTable)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// ReadSQLite loads the results table in insertion order. NULL cells come
// back as empty values.
func ReadSQLite(path string) ([]string, []Row, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("failed to open results database %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open results database %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	header, err := tableColumns(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to inspect results database %s: %w", path, err)
	}
	if len(header) == 0 {
		return nil, nil, nil
	}

	quoted := make([]string, len(header))
	for i, h := range header {
		quoted[i] = quoteIdent(h)
	}
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		strings.Join(quoted, ", "), quoteIdent(SQLiteTable)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		cells := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make(Row, len(header))
		for i, h := range header {
			row[i] = Field{Name: h, Value: cells[i].String}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return header, out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
