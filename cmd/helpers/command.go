package helpers

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ProgramFromArgs returns the program prefix given after '--', or "" when
// there is none. The prefix is split on whitespace later, so its tokens
// must not contain any.
func ProgramFromArgs(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if cmd.ArgsLenAtDash() == -1 {
		return "", fmt.Errorf("command separator '--' is required before the program")
	}
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\n") {
			return "", fmt.Errorf("program argument %q must be a single non-empty token; pass it as an --opt value instead", arg)
		}
	}
	return strings.Join(args, " "), nil
}

// ParseTimeout parses and validates a timeout duration string
func ParseTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		return 0, nil
	}

	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout duration: %w", err)
	}

	if timeout <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}

	return timeout, nil
}
