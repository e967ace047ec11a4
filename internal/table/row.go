// Package table persists sweep results as rows of a tabular store. The
// default store is a CSV file with a header row; a SQLite database is
// available for tables that outgrow a flat file.
package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrSchemaMismatch is returned by a strict sink when a row introduces
// columns that the table does not have.
var ErrSchemaMismatch = errors.New("row does not match table schema")

// SchemaPolicy decides what happens when a row carries columns the table
// has not seen yet.
type SchemaPolicy int

const (
	// WidenSchema rewrites the header with the union of old and new columns
	// and backfills empty cells for earlier rows.
	WidenSchema SchemaPolicy = iota
	// StrictSchema rejects the row with ErrSchemaMismatch.
	StrictSchema
)

func (p SchemaPolicy) String() string {
	if p == StrictSchema {
		return "strict"
	}
	return "widen"
}

// ParseSchemaPolicy maps "widen" and "strict" to a policy.
func ParseSchemaPolicy(s string) (SchemaPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "widen":
		return WidenSchema, nil
	case "strict":
		return StrictSchema, nil
	default:
		return WidenSchema, fmt.Errorf("unknown schema policy %q (want widen or strict)", s)
	}
}

// Field is one named cell.
type Field struct {
	Name  string
	Value string
}

// Row is an ordered list of cells. The order of a table's first row fixes
// the initial column order.
type Row []Field

// Names returns the column names of the row.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Get returns the value of column name.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Compact returns the row without empty cells.
func (r Row) Compact() Row {
	out := make(Row, 0, len(r))
	for _, f := range r {
		if f.Value != "" {
			out = append(out, f)
		}
	}
	return out
}

// Map returns the row as a map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

func (r Row) validate() error {
	if len(r) == 0 {
		return fmt.Errorf("empty row")
	}
	seen := make(map[string]bool, len(r))
	for _, f := range r {
		if f.Name == "" {
			return fmt.Errorf("row has an unnamed column")
		}
		if seen[f.Name] {
			return fmt.Errorf("row has duplicate column %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Sink appends rows to a results table.
type Sink interface {
	Append(row Row) error
	Close() error
}

// Open returns a sink for path: a SQLite sink for .db, .sqlite and .sqlite3
// files, a CSV sink otherwise.
func Open(path string, policy SchemaPolicy) (Sink, error) {
	if IsSQLitePath(path) {
		return OpenSQLite(path, policy)
	}
	return NewCSVSink(path, policy), nil
}

// IsSQLitePath reports whether path names a SQLite results table.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Read loads a table written by a sink from Open.
func Read(path string) ([]string, []Row, error) {
	if IsSQLitePath(path) {
		return ReadSQLite(path)
	}
	return ReadCSV(path)
}

// missingColumns returns the names of row absent from header. With fold,
// names match case-insensitively, as SQLite identifiers do.
func missingColumns(header []string, row Row, fold bool) []string {
	key := func(name string) string {
		if fold {
			return strings.ToLower(name)
		}
		return name
	}
	known := make(map[string]bool, len(header))
	for _, h := range header {
		known[key(h)] = true
	}
	var missing []string
	for _, f := range row {
		if !known[key(f.Name)] {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// foldedDuplicate reports two names of r that differ only in case.
func (r Row) foldedDuplicate() (string, string, bool) {
	seen := make(map[string]string, len(r))
	for _, f := range r {
		k := strings.ToLower(f.Name)
		if prev, ok := seen[k]; ok {
			return prev, f.Name, true
		}
		seen[k] = f.Name
	}
	return "", "", false
}
