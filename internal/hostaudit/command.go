package hostaudit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner runs host tools (who, systemctl, nft, iptables).
type CommandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec with a per-command timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns a runner bounded by timeout (10s when zero).
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecRunner{Timeout: timeout}
}

// LookPath implements CommandRunner.
func (e *ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run implements CommandRunner. A non-zero exit is returned as an error carrying stderr.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	// stable, parseable output regardless of the operator's locale
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return output, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return output, nil
}
