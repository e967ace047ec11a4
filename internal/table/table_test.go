package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(kv ...string) Row {
	r := make(Row, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		r = append(r, Field{Name: kv[i], Value: kv[i+1]})
	}
	return r
}

func sinkKinds(t *testing.T) map[string]string {
	dir := t.TempDir()
	return map[string]string{
		"csv":    filepath.Join(dir, "results.csv"),
		"sqlite": filepath.Join(dir, "results.db"),
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	written := []Row{
		row("THREADS", "1", "th", "2", "tw", "8", "label", "L", "rep", "1", "status", "success", "elapsed_ms", "120", "gcells", "12.5"),
		row("THREADS", "1", "th", "4", "tw", "8", "label", "L", "rep", "1", "status", "failed", "elapsed_ms", "3"),
		row("THREADS", "2", "th", "2", "tw", "8", "label", "L", "rep", "1", "status", "success", "elapsed_ms", "80", "gcells", "20", "time_s", "0.4"),
		row("THREADS", "2", "th", "4", "label", "L", "rep", "1", "status", "success", "elapsed_ms", "77", "note", "a, \"quoted\" value"),
	}

	for kind, path := range sinkKinds(t) {
		t.Run(kind, func(t *testing.T) {
			sink, err := Open(path, WidenSchema)
			require.NoError(t, err)
			for _, r := range written {
				require.NoError(t, sink.Append(r))
			}
			require.NoError(t, sink.Close())

			header, rows, err := Read(path)
			require.NoError(t, err)
			require.Len(t, rows, len(written))

			assert.Equal(t, []string{"THREADS", "th", "tw", "label", "rep", "status", "elapsed_ms", "gcells", "time_s", "note"}, header)
			for i := range written {
				assert.Equal(t, written[i].Map(), rows[i].Compact().Map(), "row %d", i)
			}
		})
	}
}

func TestHeaderWrittenOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "results.csv")
	sink := NewCSVSink(path, WidenSchema)
	require.NoError(t, sink.Append(row("a", "1", "b", "2")))
	require.NoError(t, sink.Append(row("a", "3", "b", "4")))

	// A second sink on the same file keeps appending under the same header.
	again := NewCSVSink(path, StrictSchema)
	require.NoError(t, again.Append(row("b", "6", "a", "5")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n3,4\n5,6\n", string(data))
	assert.Equal(t, []string{"a", "b"}, again.Header())
}

func TestCSVWidening(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	sink := NewCSVSink(path, WidenSchema)
	require.NoError(t, sink.Append(row("a", "1", "status", "failed")))
	require.NoError(t, sink.Append(row("a", "2", "status", "success", "gcells", "9.5")))
	require.NoError(t, sink.Append(row("a", "3", "status", "failed")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,status,gcells\n1,failed,\n2,success,9.5\n3,failed,\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWidenKeepsPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	sink := NewCSVSink(path, WidenSchema)
	require.NoError(t, sink.Append(row("a", "1")))
	require.NoError(t, os.Chmod(path, 0640))

	require.NoError(t, sink.Append(row("a", "2", "b", "3")))
	require.NoError(t, sink.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	header, _, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
}

func TestStrictPolicyRejectsNewColumns(t *testing.T) {
	t.Parallel()

	for kind, path := range sinkKinds(t) {
		t.Run(kind, func(t *testing.T) {
			sink, err := Open(path, StrictSchema)
			require.NoError(t, err)
			defer func() { _ = sink.Close() }()

			require.NoError(t, sink.Append(row("a", "1", "status", "failed")))
			err = sink.Append(row("a", "2", "status", "success", "gcells", "9.5"))
			require.ErrorIs(t, err, ErrSchemaMismatch)
			assert.Contains(t, err.Error(), "gcells")

			// Rows with a subset of the columns are still accepted.
			require.NoError(t, sink.Append(row("a", "3")))
		})
	}
}

func TestSQLiteReopenKeepsColumns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.sqlite")
	first, err := OpenSQLite(path, WidenSchema)
	require.NoError(t, err)
	require.NoError(t, first.Append(row("a", "1")))
	require.NoError(t, first.Append(row("a", "2", "b", "x")))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path, StrictSchema)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, second.Columns())
	require.NoError(t, second.Append(row("b", "y", "a", "3")))
	require.NoError(t, second.Close())

	_, rows, err := ReadSQLite(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]string{"a": "1", "b": ""}, rows[0].Map())
	assert.Equal(t, map[string]string{"a": "3", "b": "y"}, rows[2].Map())
}

func TestSQLiteColumnsIgnoreCase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.db")
	sink, err := OpenSQLite(path, WidenSchema)
	require.NoError(t, err)
	require.NoError(t, sink.Append(row("Gcells", "1")))
	require.NoError(t, sink.Append(row("gcells", "2")))
	assert.Equal(t, []string{"Gcells"}, sink.Columns())

	err = sink.Append(row("s", "512", "S", "4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "treats as one")
	require.NoError(t, sink.Close())

	_, rows, err := ReadSQLite(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"Gcells": "2"}, rows[1].Map())
}

func TestInvalidRows(t *testing.T) {
	t.Parallel()

	sink := NewCSVSink(filepath.Join(t.TempDir(), "results.csv"), WidenSchema)
	tests := []struct {
		name string
		row  Row
		msg  string
	}{
		{name: "empty", row: Row{}, msg: "empty row"},
		{name: "unnamed", row: row("", "1"), msg: "unnamed"},
		{name: "duplicate", row: row("a", "1", "a", "2"), msg: "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sink.Append(tt.row)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.msg), err.Error())
		})
	}
}

func TestParseSchemaPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseSchemaPolicy("")
	require.NoError(t, err)
	assert.Equal(t, WidenSchema, p)

	p, err = ParseSchemaPolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, StrictSchema, p)
	assert.Equal(t, "strict", p.String())

	_, err = ParseSchemaPolicy("loose")
	assert.Error(t, err)
}

func TestIsSQLitePath(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSQLitePath("runs/results.db"))
	assert.True(t, IsSQLitePath("x.SQLITE3"))
	assert.False(t, IsSQLitePath("results.csv"))
	assert.False(t, IsSQLitePath("results"))
}
