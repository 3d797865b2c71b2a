package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/shinji-kodama/matchering-bridge/internal/runner"
)

// cleanupTimeout bounds the calls made after a run has finished or been
// cancelled (kill, logs, remove). They use their own context so cleanup
// still happens when the caller's context is already done.
const cleanupTimeout = 10 * time.Second

// Runner executes tool argument lists in a container. It implements
// runner.Runner.
type Runner struct {
	client *Client

	// Image is the container image holding the interpreter and the
	// matchering dependencies.
	Image string

	// Workdir is the working directory inside the container.
	Workdir string

	// Timeout bounds each Run call. Zero means runner.DefaultTimeout.
	Timeout time.Duration

	// RunID is stored in the container labels.
	RunID string

	// Logger receives debug output about container lifecycle.
	Logger *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewRunner creates a container runner for image.
func NewRunner(cli *Client, image, workdir string, timeout time.Duration) *Runner {
	return &Runner{
		client:  cli,
		Image:   image,
		Workdir: workdir,
		Timeout: timeout,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
}

// BindMounts returns one bind mount per distinct directory referenced by
// an absolute path argument. Directories are mounted at the same path in
// the container, so arguments need no rewriting. Output files that do not
// exist yet are covered by their parent directory.
func BindMounts(args []string) []mount.Mount {
	seen := make(map[string]bool)
	for _, a := range args {
		if !filepath.IsAbs(a) {
			continue
		}
		dir := a
		if info, err := os.Stat(a); err != nil || !info.IsDir() {
			dir = filepath.Dir(a)
		}
		seen[filepath.Clean(dir)] = true
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	mounts := make([]mount.Mount, 0, len(dirs))
	for _, d := range dirs {
		// A mount below another one would shadow files written through
		// the parent, so only keep top-most directories. Siblings such as
		// "/a-b" sort between "/a" and "/a/b".
		if coveredBy(d, mounts) {
			continue
		}
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: d,
			Target: d,
		})
	}
	return mounts
}

// coveredBy reports whether dir lies within one of the mounts.
func coveredBy(dir string, mounts []mount.Mount) bool {
	for _, m := range mounts {
		if isWithin(dir, m.Source) {
			return true
		}
	}
	return false
}

// isWithin reports whether path is dir or a descendant of it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !startsWithParent(rel)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// containerSpec builds the create request for one tool run.
func (r *Runner) containerSpec(args []string) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:      r.Image,
		Cmd:        args,
		WorkingDir: r.Workdir,
		Labels:     BuildLabels(args, r.RunID, r.now()),
		Env:        []string{"PYTHONUNBUFFERED=1"},
	}
	// Files written to bind mounts must belong to the invoking user, not
	// root, or REAPER cannot replace them later.
	if runtime.GOOS == "linux" {
		cfg.User = fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	}
	host := &container.HostConfig{
		Mounts: BindMounts(args),
	}
	return cfg, host
}

// Run executes args in a fresh container and waits for it to exit.
func (r *Runner) Run(ctx context.Context, args []string) (*runner.Result, error) {
	if len(args) == 0 {
		return nil, errors.New("runner: empty argument list")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = runner.DefaultTimeout
	}

	api := r.client.Inner()
	cfg, host := r.containerSpec(args)

	// Step 1: Create the container, pulling the image on first use.
	created, err := api.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if errdefs.IsNotFound(err) {
		r.Logger.Info("pulling image", "image", r.Image)
		if err := r.pull(ctx); err != nil {
			return nil, err
		}
		created, err = api.ContainerCreate(ctx, cfg, host, nil, nil, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create container for %s: %w", ToolName(args), err)
	}
	id := created.ID
	r.Logger.Debug("container created", "id", shortID(id), "tool", ToolName(args))

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := api.ContainerRemove(cleanupCtx, id, container.RemoveOptions{Force: true}); err != nil {
			r.Logger.Warn("failed to remove container", "id", shortID(id), "error", err)
		}
	}()

	// Step 2: Register the wait before starting so a fast exit is not missed.
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	waitCh, errCh := api.ContainerWait(runCtx, id, container.WaitConditionNextExit)

	start := time.Now()
	if err := api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container for %s: %w", ToolName(args), err)
	}

	// Step 3: Wait for the exit, the timeout or cancellation.
	result := &runner.Result{Args: append([]string(nil), args...)}
	select {
	case resp := <-waitCh:
		result.ExitCode = int(resp.StatusCode)
		if resp.Error != nil && resp.Error.Message != "" {
			return result, fmt.Errorf("container wait failed: %s", resp.Error.Message)
		}
	case err := <-errCh:
		result.Duration = time.Since(start)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			r.kill(ctx, id)
			result.ExitCode = -1
			return result, &runner.TimeoutError{Args: result.Args, Timeout: timeout}
		}
		r.kill(ctx, id)
		return result, fmt.Errorf("failed to run %s: %w", ToolName(args), err)
	}
	result.Duration = time.Since(start)

	// Step 4: Collect output and classify.
	if err := r.collectLogs(ctx, id, result); err != nil {
		return result, err
	}
	if result.ExitCode != 0 {
		return result, &runner.ExitError{Args: result.Args, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return result, nil
}

// pull downloads the image. The progress stream must be drained for the
// pull to complete.
func (r *Runner) pull(ctx context.Context) error {
	rc, err := r.client.Inner().ImagePull(ctx, r.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", r.Image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", r.Image, err)
	}
	return nil
}

// collectLogs demultiplexes the container's stdout and stderr.
func (r *Runner) collectLogs(ctx context.Context, id string, result *runner.Result) error {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	rc, err := r.client.Inner().ContainerLogs(logCtx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to read container output: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return fmt.Errorf("failed to read container output: %w", err)
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return nil
}

func (r *Runner) kill(ctx context.Context, id string) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := r.client.Inner().ContainerKill(killCtx, id, "KILL"); err != nil {
		r.Logger.Debug("kill failed", "id", shortID(id), "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
