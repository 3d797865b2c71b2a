package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay is how long Run keeps waiting for the program's output pipes
// after the process was killed. Python tools may leave children behind that
// hold stdout open; without a bound, a timed-out run could still hang.
const waitDelay = 5 * time.Second

// Local runs programs directly on the host with os/exec.
//
// It is stateless apart from its configuration, so a single Local can be
// shared by every step of a flow.
type Local struct {
	// Timeout bounds each Run call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Dir is the working directory for executed programs.
	// Empty means the current directory.
	Dir string

	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
}

// NewLocal creates a Local runner with the given timeout.
func NewLocal(timeout time.Duration) *Local {
	return &Local{Timeout: timeout}
}

// Run executes args[0] with the remaining arguments and waits for it.
//
// Stdout and stderr are captured separately: stdout is the program's
// report (echoed to the console by the caller), stderr carries the
// traceback shown in the failure dialog.
func (l *Local) Run(ctx context.Context, args []string) (*Result, error) {
	if len(args) == 0 {
		return nil, errors.New("runner: empty argument list")
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204: the argument list comes from the tool configuration,
	// not from a shell string, so there is no interpolation to exploit.
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(cmd.Environ(), l.Env...)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Args:     append([]string(nil), args...),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	// The deadline check comes first: a killed process also surfaces as an
	// ExitError ("signal: killed"), which would otherwise be misreported
	// as an ordinary failure.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.ExitCode = -1
		return result, &TimeoutError{Args: result.Args, Timeout: timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Args: result.Args, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	// Anything else: executable not found, permission denied, parent
	// context cancelled.
	return result, fmt.Errorf("failed to run %s: %w", commandName(args), err)
}
