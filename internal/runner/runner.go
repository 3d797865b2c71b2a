package runner

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds every external program run. Matchering a full
// song takes well under a minute on current hardware; five minutes leaves
// room for long masters and cold interpreter starts.
const DefaultTimeout = 300 * time.Second

// Runner executes an external program given as an argument list
// (executable first, then positional arguments).
//
// Implementations must return a *TimeoutError when the program exceeds its
// time budget and an *ExitError when it exits non-zero. A non-nil Result is
// returned together with an ExitError so callers can still inspect stdout.
type Runner interface {
	Run(ctx context.Context, args []string) (*Result, error)
}

// Result holds the captured output of a finished program.
type Result struct {
	// Args is the full argument list that was executed.
	Args []string

	// Stdout is everything the program wrote to standard output.
	Stdout string

	// Stderr is everything the program wrote to standard error.
	Stderr string

	// ExitCode is the process exit status (0 on success).
	ExitCode int

	// Duration is the wall-clock time the program ran.
	Duration time.Duration
}

// TimeoutError reports that a program was killed after exceeding its timeout.
type TimeoutError struct {
	Args    []string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", commandName(e.Args), e.Timeout)
}

// ExitError reports a program that ran but exited with a non-zero status.
type ExitError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", commandName(e.Args), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg = fmt.Sprintf("%s: %s", msg, Truncate(s, 200))
	}
	return msg
}

// Truncate returns at most n runes of s. Stderr from Python tracebacks can
// be arbitrarily long, so dialogs only ever show a prefix of it.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// HumanDuration formats a timeout the way the dialogs phrase it
// ("5 minutes", "90 seconds").
func HumanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	s := int(d.Round(time.Second) / time.Second)
	if s == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", s)
}

// commandName returns the most descriptive part of an argument list for
// error messages: the script when an interpreter runs one, otherwise the
// executable itself.
func commandName(args []string) string {
	switch len(args) {
	case 0:
		return "command"
	case 1:
		return args[0]
	default:
		if strings.HasSuffix(args[1], ".py") {
			return args[1]
		}
		return args[0]
	}
}
