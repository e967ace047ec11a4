package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zinc-sig/easysweep/internal/sweep"
)

// Sweep outcomes reported in Summary.Status.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
	StatusDryRun      = "dry_run"
)

// Summary is the JSON document printed after each sweep.
type Summary struct {
	SweepID      string    `json:"sweep_id"`
	Name         string    `json:"name,omitempty"`
	Status       string    `json:"status"`
	Results      string    `json:"results,omitempty"`
	Averages     string    `json:"averages,omitempty"`
	Combinations int       `json:"combinations"`
	Planned      int       `json:"planned"`
	Executed     int       `json:"executed"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	TimedOut     int       `json:"timed_out"`
	Errored      int       `json:"errored"`
	Skipped      int       `json:"skipped"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`

	// Remote object names, set when an upload provider is configured.
	Uploaded    []string `json:"uploaded,omitempty"`
	UploadError string   `json:"upload_error,omitempty"`

	// Webhook status (only in local output, not sent to webhook)
	WebhookSent  bool   `json:"webhook_sent,omitempty"`
	WebhookError string `json:"webhook_error,omitempty"`
}

// FromSweep converts the counters of a finished sweep. runErr is the error
// the sweep returned, if any.
func FromSweep(s *sweep.Summary, dryRun bool, runErr error) *Summary {
	out := &Summary{
		SweepID:      s.ID,
		Name:         s.Name,
		Status:       StatusCompleted,
		Results:      s.ResultsPath,
		Averages:     s.SummaryPath,
		Combinations: s.Combinations,
		Planned:      s.Planned,
		Executed:     s.Executed,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		TimedOut:     s.TimedOut,
		Errored:      s.Errored,
		Skipped:      s.Skipped,
		StartedAt:    s.StartedAt,
		DurationMs:   s.Duration.Milliseconds(),
	}
	switch {
	case runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)):
		out.Status = StatusInterrupted
		out.Error = runErr.Error()
	case runErr != nil:
		out.Status = StatusFailed
		out.Error = runErr.Error()
	case dryRun:
		out.Status = StatusDryRun
		out.Results = ""
	}
	return out
}

// Payload returns a copy without the local-only webhook fields.
func (s *Summary) Payload() *Summary {
	p := *s
	p.WebhookSent = false
	p.WebhookError = ""
	return &p
}

// Write prints s as one line of JSON.
func Write(w io.Writer, s *Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}
