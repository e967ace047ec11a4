package config

import "time"

// CommonFlags holds commonly used flags across commands
type CommonFlags struct {
	Verbose    bool
	DryRun     bool
	TimeoutStr string
	Timeout    time.Duration
	LogFormat  string
}

// SweepFlags describe a single sweep on the command line, or select and
// adjust the sweeps of a plan file.
type SweepFlags struct {
	Plan   string
	Sweeps []string // plan sweeps to run, all when empty

	Name             string
	Program          string
	BasePath         string
	Options          []string // NAME=VALUE, repeated to add candidates
	Env              []string // NAME=VALUE, repeated to add candidates
	Metrics          []string // NAME=REGEX
	Repetitions      int
	Label            string
	Results          string
	Summary          string
	Skip             int
	ExtractOnFailure bool
	Schema           string
}

// UploadConfig holds upload-related flags
type UploadConfig struct {
	Provider   string
	Config     string
	ConfigKV   []string
	ConfigFile string
}

// WebhookConfig holds webhook-related flags
type WebhookConfig struct {
	// Direct configuration flags
	URL        string
	Method     string // HTTP method (GET, POST, PUT, PATCH, DELETE)
	AuthType   string
	AuthToken  string
	Timeout    string
	Retries    int
	RetryDelay string

	// Alternative configuration methods
	Config     string   // JSON string configuration
	ConfigKV   []string // Key-value pairs
	ConfigFile string   // Path to JSON or YAML config file
}
