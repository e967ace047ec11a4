package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Status is the outcome class of a child process.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
	// StatusError marks a child that could not be started. Execute never
	// returns it; callers use it to record start failures.
	StatusError Status = "error"
)

// Config describes one child process.
type Config struct {
	Command string
	Args    []string
	// Env is the complete child environment. A nil Env inherits the
	// environment of the current process.
	Env     []string
	Dir     string
	Timeout time.Duration
	// Verbose tees the child's stderr to Stderr while still capturing it.
	Verbose bool
	Stderr  io.Writer
}

// Result holds the captured outcome of a child process.
type Result struct {
	Command       string
	Status        Status
	ExitCode      int
	ExecutionTime int64 // milliseconds
	Stdout        string
	Stderr        string
}

// FullCommand joins the command and its arguments with single spaces.
func (c *Config) FullCommand() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// Execute runs the child to completion and captures its output. A non-zero
// exit or a timeout is reported on the Result; an error is returned only
// when the child could not be started.
func Execute(ctx context.Context, config *Config) (*Result, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	cmd.Env = config.Env
	cmd.Dir = config.Dir
	// Grandchildren may hold the output pipes open after a timeout kill.
	cmd.WaitDelay = 500 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if config.Verbose {
		sink := config.Stderr
		if sink == nil {
			sink = os.Stderr
		}
		cmd.Stderr = io.MultiWriter(&stderr, sink)
	} else {
		cmd.Stderr = &stderr
	}

	startTime := time.Now()
	err := cmd.Run()
	executionTime := time.Since(startTime).Milliseconds()

	result := &Result{
		Command:       config.FullCommand(),
		Status:        StatusSuccess,
		ExecutionTime: executionTime,
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	if config.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Status = StatusTimeout
		result.ExitCode = -1
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		result.Status = StatusFailed
		// -1 when the child was terminated by a signal
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}

	return nil, fmt.Errorf("failed to start command: %w", err)
}
