// Package cli: watch.go implements the "matchering-bridge watch" command.
//
// watch keeps a generated effect in sync with the analyzer output: every
// time the params file is written (by the analyzer, or by hand while
// tweaking it) the JSFX generator runs again for the chosen profile.
// REAPER recompiles a JSFX when its file changes, so the loaded plugin
// picks up the new curve without touching the project.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/dialog"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// watchFlags holds the flag values for the watch command.
type watchFlags struct {
	profile  string
	debounce time.Duration
}

// NewWatchCommand creates the "watch" cobra command.
func NewWatchCommand() *cobra.Command {
	flags := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the JSFX plugin whenever the params file changes",
		Long: `Watch the analyzer's params file and rerun the JSFX generator for a
profile each time the file is written. Stop with Ctrl-C.

Examples:
  matchering-bridge watch
  matchering-bridge watch --profile "Rock Ref" --debounce 1s`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.profile, "profile", "", "Profile whose effect is regenerated")
	cmd.Flags().DurationVar(&flags.debounce, "debounce", 500*time.Millisecond,
		"Quiet period after the last write before regenerating")

	return cmd
}

// runWatch sets up the session and the watcher, then blocks in watchLoop
// until interrupted.
func runWatch(cmd *cobra.Command, flags *watchFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 1: Configuration and backend.
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	ui := newTerminal(cmd, dialog.Presets{})
	w := s.workflow(nil, ui)
	profile := model.NewProfile(flags.profile)
	params := w.Tools.ParamsFile

	// Step 2: Watch the directory rather than the file. The analyzer
	// replaces the file, which drops a watch placed on the file itself.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(params)); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to watch %s", filepath.Dir(params)), err)
	}

	ui.Console(fmt.Sprintf("Watching %s (effect: %s)", params, w.Tools.JSFXPath(profile)))

	// Step 3: Regenerate on every settled change. Failures were already
	// shown by the workflow; keep watching.
	err = watchLoop(ctx, watcher, params, flags.debounce, s.logger, func(ctx context.Context) {
		if err := w.Regenerate(ctx, profile); err != nil {
			s.logger.Warn("regeneration failed", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchLoop calls onChange once per burst of writes to path, after the
// file has been quiet for debounce. It returns when ctx is done or the
// watcher is closed.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration,
	logger *slog.Logger, onChange func(context.Context)) error {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isParamsEvent(event, path) {
				continue
			}
			logger.Debug("params file changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// isParamsEvent reports whether event means new content in path.
func isParamsEvent(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != filepath.Clean(path) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
