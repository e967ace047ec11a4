package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zinc-sig/easysweep/internal/output"
	"github.com/zinc-sig/easysweep/internal/table"
)

const benchScript = `echo "Performance: $(( $2 * ${THREADS:-1} )) Gcell/s"
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func summaries(t *testing.T, stdout string) []output.Summary {
	t.Helper()
	var out []output.Summary
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line == "" {
			continue
		}
		var s output.Summary
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			t.Fatalf("stdout line is not a summary: %q: %v", line, err)
		}
		out = append(out, s)
	}
	return out
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
}

func column(rows []table.Row, name string) []string {
	var out []string
	for _, r := range rows {
		v, _ := r.Get(name)
		out = append(out, v)
	}
	return out
}

func TestRunSweep(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bench.sh", benchScript)
	results := filepath.Join(dir, "results.csv")

	stdout, _, err := execute(t, "run",
		"--base-path", dir,
		"-o", results,
		"--env", "THREADS=2", "--env", "THREADS=4",
		"--opt=-n=1", "--opt=-n=3",
		"--name", "threads",
		"--", "sh", "bench.sh",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := summaries(t, stdout)
	if len(got) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(got))
	}
	s := got[0]
	if s.Status != output.StatusCompleted || s.Name != "threads" || s.Executed != 4 || s.Succeeded != 4 || s.Combinations != 4 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.SweepID == "" || s.Results != results {
		t.Errorf("unexpected summary %+v", s)
	}

	header, rows, err := table.ReadCSV(results)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	wantHeader := []string{"THREADS", "n", "label", "rep", "status", "elapsed_ms", "gcells"}
	if !slices.Equal(header, wantHeader) {
		t.Errorf("header = %v, want %v", header, wantHeader)
	}
	if got := column(rows, "gcells"); !slices.Equal(got, []string{"2", "6", "4", "12"}) {
		t.Errorf("gcells = %v", got)
	}
	if got := column(rows, "status"); !slices.Equal(got, []string{"success", "success", "success", "success"}) {
		t.Errorf("status = %v", got)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	tests := []struct {
		name       string
		timeout    string
		script     string
		wantStatus string
		wantErr    bool
	}{
		{name: "run completes before timeout", timeout: "--timeout=5s", script: "bench.sh", wantStatus: "success"},
		{name: "run times out", timeout: "--timeout=100ms", script: "slow.sh", wantStatus: "timeout"},
		{name: "invalid timeout format", timeout: "--timeout=invalid", script: "bench.sh", wantErr: true},
		{name: "negative timeout", timeout: "--timeout=-1s", script: "bench.sh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeScript(t, dir, "bench.sh", benchScript)
			writeScript(t, dir, "slow.sh", "sleep 5\n")
			results := filepath.Join(dir, "results.csv")

			stdout, _, err := execute(t, "run", tt.timeout,
				"--base-path", dir, "-o", results, "--opt=-n=1",
				"--", "sh", tt.script)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			_, rows, err := table.ReadCSV(results)
			if err != nil {
				t.Fatalf("ReadCSV: %v", err)
			}
			if got := column(rows, "status"); !slices.Equal(got, []string{tt.wantStatus}) {
				t.Errorf("status = %v, want %s", got, tt.wantStatus)
			}

			s := summaries(t, stdout)[0]
			if tt.wantStatus == "timeout" && s.TimedOut != 1 {
				t.Errorf("expected one timed out run, got %+v", s)
			}
		})
	}
}

func TestRunWithWebhook(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bench.sh", benchScript)

	var received output.Summary
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer t0ken" {
			t.Errorf("unexpected Authorization %q", r.Header.Get("Authorization"))
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("Failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("Failed to unmarshal payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stdout, _, err := execute(t, "run",
		"--base-path", dir, "-o", filepath.Join(dir, "r.csv"), "--opt=-n=2",
		"--webhook-url", server.URL,
		"--webhook-auth-type", "bearer",
		"--webhook-auth-token", "t0ken",
		"--webhook-retries", "0",
		"--", "sh", "bench.sh")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s := summaries(t, stdout)[0]
	if !s.WebhookSent || s.WebhookError != "" {
		t.Errorf("expected webhook to be sent, got %+v", s)
	}
	if received.SweepID != s.SweepID || received.Executed != 1 {
		t.Errorf("webhook payload %+v does not match summary %+v", received, s)
	}
	if received.WebhookSent {
		t.Error("webhook payload must not carry webhook status")
	}
}

func TestRunWebhookFailureDoesNotFailSweep(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bench.sh", benchScript)

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	stdout, stderr, err := execute(t, "run",
		"--base-path", dir, "-o", filepath.Join(dir, "r.csv"), "--opt=-n=2",
		"--webhook-config-kv", "url="+server.URL,
		"--webhook-retries", "0",
		"--", "sh", "bench.sh")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s := summaries(t, stdout)[0]
	if s.WebhookSent || !strings.Contains(s.WebhookError, "status 500") {
		t.Errorf("expected webhook error, got %+v", s)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
	if !strings.Contains(stderr, "webhook failed") {
		t.Errorf("expected a warning on stderr, got %q", stderr)
	}
}

func TestRunUploadsToDirectory(t *testing.T) {
	dir := t.TempDir()
	dest := t.TempDir()
	writeScript(t, dir, "bench.sh", benchScript)

	stdout, _, err := execute(t, "run",
		"--base-path", dir,
		"-o", filepath.Join(dir, "results.csv"),
		"--summary", filepath.Join(dir, "averages.csv"),
		"--opt=-n=2", "-r", "2",
		"--upload-provider", "dir",
		"--upload-config-kv", "path="+dest,
		"--", "sh", "bench.sh")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s := summaries(t, stdout)[0]
	want := []string{s.SweepID + "/results.csv", s.SweepID + "/averages.csv"}
	if !slices.Equal(s.Uploaded, want) {
		t.Errorf("Uploaded = %v, want %v", s.Uploaded, want)
	}
	for _, remote := range want {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(remote))); err != nil {
			t.Errorf("uploaded file missing: %v", err)
		}
	}

	_, rows, err := table.ReadCSV(filepath.Join(dest, s.SweepID, "averages.csv"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one averages row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("runs"); v != "2" {
		t.Errorf("runs = %s", v)
	}
	if v, _ := rows[0].Get("gcells"); v != "2" {
		t.Errorf("gcells mean = %s", v)
	}
}

const testPlan = `
program: sh bench.sh
base_path: .
results: out/results.csv
sweeps:
  - name: small
    options:
      -n: [1, 2]
  - name: wide
    extends: small
    env:
      THREADS: [2, 4]
`

func writePlan(t *testing.T) (dir, planPath string) {
	t.Helper()
	dir = t.TempDir()
	writeScript(t, dir, "bench.sh", benchScript)
	planPath = filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(planPath, []byte(testPlan), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, planPath
}

func TestRunPlanDryRun(t *testing.T) {
	dir, planPath := writePlan(t)

	stdout, stderr, err := execute(t, "run", "--plan", planPath, "--dry-run")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := summaries(t, stdout)
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	for _, s := range got {
		if s.Status != output.StatusDryRun || s.Executed != 0 {
			t.Errorf("unexpected dry-run summary %+v", s)
		}
	}
	if got[0].Planned != 2 || got[1].Planned != 4 {
		t.Errorf("planned = %d, %d", got[0].Planned, got[1].Planned)
	}
	if strings.Count(stderr, "(DRY RUN)") != 6 {
		t.Errorf("expected 6 narrated runs, got stderr:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Errorf("dry run must not write results: %v", err)
	}
}

func TestRunPlanSelectedSweep(t *testing.T) {
	dir, planPath := writePlan(t)

	stdout, _, err := execute(t, "run", "--plan", planPath, "--sweep", "wide")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	s := summaries(t, stdout)
	if len(s) != 1 || s[0].Name != "wide" || s[0].Succeeded != 4 {
		t.Fatalf("unexpected summaries %+v", s)
	}

	_, rows, err := table.ReadCSV(filepath.Join(dir, "out", "results.csv"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got := column(rows, "gcells"); !slices.Equal(got, []string{"2", "4", "4", "8"}) {
		t.Errorf("gcells = %v", got)
	}
}

func TestPlanCommand(t *testing.T) {
	_, planPath := writePlan(t)

	stdout, _, err := execute(t, "plan", planPath)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	for _, want := range []string{"Sweep Plan", "small", "wide", "Total runs:     6"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("plan output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, "plan", planPath, "--sweep", "wide")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if strings.Contains(stdout, "small") || !strings.Contains(stdout, "Total runs:     4") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	if _, _, err := execute(t, "plan", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing plan")
	}
}

func TestRunFlagErrors(t *testing.T) {
	_, planPath := writePlan(t)
	dir := t.TempDir()
	results := filepath.Join(dir, "r.csv")

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{name: "no program", args: []string{"run", "-o", results}, msg: "no program"},
		{name: "missing separator", args: []string{"run", "-o", results, "sh", "bench.sh"}, msg: "separator"},
		{name: "program twice", args: []string{"run", "-o", results, "--program", "sh", "--", "sh"}, msg: "not both"},
		{name: "plan with opt", args: []string{"run", "--plan", planPath, "--opt=-n=1"}, msg: "--opt cannot be combined with --plan"},
		{name: "plan with program", args: []string{"run", "--plan", planPath, "--", "sh"}, msg: "cannot be combined with --plan"},
		{name: "sweep without plan", args: []string{"run", "--sweep", "x", "--", "sh"}, msg: "--sweep requires --plan"},
		{name: "unknown sweep", args: []string{"run", "--plan", planPath, "--sweep", "huge"}, msg: "no sweep named"},
		{name: "skip over many sweeps", args: []string{"run", "--plan", planPath, "--skip", "1"}, msg: "single sweep"},
		{name: "bad schema", args: []string{"run", "-o", results, "--schema", "loose", "--", "sh"}, msg: "unknown schema policy"},
		{name: "bad metric", args: []string{"run", "-o", results, "--metric", "rate=[0-9]+", "--", "sh"}, msg: "capture group"},
		{name: "bad log format", args: []string{"run", "--log-format", "xml", "--", "sh"}, msg: "unknown log format"},
		{name: "no results table", args: []string{"run", "--opt=-n=1", "--", "sh"}, msg: "no results table"},
		{name: "unknown upload provider", args: []string{"run", "-o", results, "--upload-provider", "ftp", "--", "sh"}, msg: "unknown"},
		{name: "bad webhook method", args: []string{"run", "-o", results, "--webhook-url", "http://localhost", "--webhook-method", "TRACE", "--", "sh"}, msg: "unsupported webhook method"},
		{name: "token with whitespace", args: []string{"run", "-o", results, "--", "sh", "-c", "echo hi"}, msg: "single non-empty token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %v, want it to contain %q", err, tt.msg)
			}
		})
	}
}
