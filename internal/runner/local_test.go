package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script in a temporary directory
// and returns its path. The fake tools used across these tests are plain
// /bin/sh scripts, so the suite is skipped on Windows.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "tool.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)
	require.NoError(t, err, "failed to write fake tool")
	return path
}

// TestLocalRun_Success verifies that stdout and stderr are captured
// separately and the positional arguments reach the program.
func TestLocalRun_Success(t *testing.T) {
	script := writeScript(t, `echo "analyzed $1 against $2"; echo "warming up" >&2`)

	r := NewLocal(10 * time.Second)
	result, err := r.Run(context.Background(), []string{script, "target.wav", "ref.wav"})
	require.NoError(t, err)

	assert.Equal(t, "analyzed target.wav against ref.wav\n", result.Stdout)
	assert.Equal(t, "warming up\n", result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, []string{script, "target.wav", "ref.wav"}, result.Args)
}

// TestLocalRun_DirAndEnv verifies that programs start in Dir and see Env
// on top of the inherited environment.
func TestLocalRun_DirAndEnv(t *testing.T) {
	script := writeScript(t, `pwd; echo "$MB_EXTRA"`)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	r := NewLocal(10 * time.Second)
	r.Dir = dir
	r.Env = []string{"MB_EXTRA=on"}
	result, err := r.Run(context.Background(), []string{script})
	require.NoError(t, err)

	assert.Equal(t, dir+"\non\n", result.Stdout)
}

// TestLocalRun_NonZeroExit verifies that a failing program yields an
// ExitError carrying the exit code and the full stderr.
func TestLocalRun_NonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "Traceback: boom" >&2; exit 3`)

	r := NewLocal(10 * time.Second)
	result, err := r.Run(context.Background(), []string{script})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "error should be an *ExitError, got %T", err)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "Traceback: boom\n", exitErr.Stderr)

	// The result is still returned so callers can inspect stdout.
	require.NotNil(t, result)
	assert.Equal(t, 3, result.ExitCode)
}

// TestLocalRun_Timeout verifies that a program exceeding its timeout is
// killed and reported as a TimeoutError, not as an ordinary failure.
func TestLocalRun_Timeout(t *testing.T) {
	script := writeScript(t, `exec sleep 5`)

	r := NewLocal(200 * time.Millisecond)
	start := time.Now()
	_, err := r.Run(context.Background(), []string{script})
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "error should be a *TimeoutError, got %T", err)
	assert.Equal(t, 200*time.Millisecond, timeoutErr.Timeout)
	assert.Less(t, time.Since(start), 5*time.Second, "the program should have been killed early")
}

// TestLocalRun_MissingExecutable verifies that a program that cannot be
// started is neither a timeout nor an exit error.
func TestLocalRun_MissingExecutable(t *testing.T) {
	r := NewLocal(time.Second)
	_, err := r.Run(context.Background(), []string{filepath.Join(t.TempDir(), "does-not-exist")})
	require.Error(t, err)

	var exitErr *ExitError
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &exitErr))
	assert.False(t, errors.As(err, &timeoutErr))
	assert.Contains(t, err.Error(), "failed to run")
}

// TestLocalRun_EmptyArgs verifies the guard against an empty argument list.
func TestLocalRun_EmptyArgs(t *testing.T) {
	_, err := NewLocal(time.Second).Run(context.Background(), nil)
	assert.Error(t, err)
}

// TestTruncate verifies rune-safe truncation used for dialog excerpts.
func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "abc", 5, "abc"},
		{"exactly the limit", "abcde", 5, "abcde"},
		{"longer than limit", "abcdef", 5, "abcde"},
		{"multibyte runes stay intact", "ééééé", 2, "éé"},
		{"zero limit", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}

// TestHumanDuration verifies the timeout phrasing used in dialogs.
func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "5 minutes", HumanDuration(300*time.Second))
	assert.Equal(t, "1 minute", HumanDuration(time.Minute))
	assert.Equal(t, "90 seconds", HumanDuration(90*time.Second))
	assert.Equal(t, "1 second", HumanDuration(time.Second))
}

// TestErrorMessages verifies that error strings name the script rather
// than the interpreter when a .py file is executed.
func TestErrorMessages(t *testing.T) {
	args := []string{"/venv/bin/python3", "/tools/matchering_analyzer.py", "a.wav"}

	timeoutErr := &TimeoutError{Args: args, Timeout: 300 * time.Second}
	assert.Equal(t, "/tools/matchering_analyzer.py timed out after 5m0s", timeoutErr.Error())

	exitErr := &ExitError{Args: args, ExitCode: 1, Stderr: "ValueError: bad file\n"}
	assert.Equal(t, "/tools/matchering_analyzer.py exited with status 1: ValueError: bad file", exitErr.Error())
}
