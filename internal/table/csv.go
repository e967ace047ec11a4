package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CSVSink appends rows to a CSV file. The header is written on the first
// append to a missing or empty file; later appends never touch earlier rows
// except when WidenSchema rewrites the header.
type CSVSink struct {
	path   string
	policy SchemaPolicy
	header []string
	loaded bool
}

// NewCSVSink returns a sink for path. The file is not touched until the first
// append.
func NewCSVSink(path string, policy SchemaPolicy) *CSVSink {
	return &CSVSink{path: path, policy: policy}
}

// Path returns the table path.
func (s *CSVSink) Path() string { return s.path }

// Header returns the current column names.
func (s *CSVSink) Header() []string {
	return append([]string(nil), s.header...)
}

// Append writes row, creating or widening the table as needed.
func (s *CSVSink) Append(row Row) error {
	if err := row.validate(); err != nil {
		return err
	}
	if !s.loaded {
		header, err := readHeader(s.path)
		if err != nil {
			return err
		}
		s.header = header
		s.loaded = true
	}

	if len(s.header) == 0 {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
			}
		}
		header := row.Names()
		if err := appendRecords(s.path, header, recordFor(header, row)); err != nil {
			return err
		}
		s.header = header
		return nil
	}

	if missing := missingColumns(s.header, row, false); len(missing) > 0 {
		if s.policy == StrictSchema {
			return fmt.Errorf("%w: %s has no column(s) %s", ErrSchemaMismatch, s.path, strings.Join(missing, ", "))
		}
		widened := append(append([]string(nil), s.header...), missing...)
		if err := rewriteHeader(s.path, widened); err != nil {
			return err
		}
		s.header = widened
	}

	return appendRecords(s.path, recordFor(s.header, row))
}

// Close is a no-op; every append is flushed and closed immediately.
func (s *CSVSink) Close() error { return nil }

func recordFor(header []string, row Row) []string {
	record := make([]string, len(header))
	for i, h := range header {
		record[i], _ = row.Get(h)
	}
	return record
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open results table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

func appendRecords(path string, records ...[]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open results table %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// rewriteHeader replaces the table with a copy whose header is header and
// whose earlier rows are padded with empty cells. The copy is renamed over
// the original so readers never see a half-written table.
func rewriteHeader(path string, header []string) error {
	_, rows, err := readRecords(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to widen %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".easysweep-*.csv")
	if err != nil {
		return fmt.Errorf("failed to widen %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	// CreateTemp uses 0600; the table keeps the permissions it was created with.
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to widen %s: %w", path, err)
	}

	w := csv.NewWriter(tmp)
	_ = w.Write(header)
	for _, rec := range rows {
		padded := make([]string, len(header))
		copy(padded, rec)
		_ = w.Write(padded)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to widen %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to widen %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to widen %s: %w", path, err)
	}
	return nil
}

func readRecords(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open results table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// ReadCSV loads a CSV results table. Every returned row carries one field
// per header column, in header order.
func ReadCSV(path string) ([]string, []Row, error) {
	header, records, err := readRecords(path)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]Row, len(records))
	for i, rec := range records {
		row := make(Row, len(header))
		for j, h := range header {
			row[j].Name = h
			if j < len(rec) {
				row[j].Value = rec[j]
			}
		}
		rows[i] = row
	}
	return header, rows, nil
}
