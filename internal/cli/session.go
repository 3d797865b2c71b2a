package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/config"
	"github.com/shinji-kodama/matchering-bridge/internal/dialog"
	"github.com/shinji-kodama/matchering-bridge/internal/docker"
	"github.com/shinji-kodama/matchering-bridge/internal/logging"
	"github.com/shinji-kodama/matchering-bridge/internal/matchering"
	"github.com/shinji-kodama/matchering-bridge/internal/metrics"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
	"github.com/shinji-kodama/matchering-bridge/internal/rpp"
	"github.com/shinji-kodama/matchering-bridge/internal/runner"
)

// session is everything one command invocation needs: configuration,
// logger, metrics and the backend that runs the tools.
type session struct {
	cfg     *config.Config
	runID   string
	logger  *slog.Logger
	metrics *metrics.Recorder
	runner  runner.Runner

	// docker is set for the docker backend and closed by close.
	docker *docker.Client
}

// newSession loads the configuration and builds the tool backend.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:     cfg,
		runID:   logging.NewRunID(),
		metrics: metrics.New(),
	}
	s.logger = logging.New(logging.ParseLevel(cfg.LogLevel, verbose), s.runID)
	VerboseLog("Loaded configuration (backend: %s, timeout: %s)", cfg.Backend, cfg.Timeout)

	switch cfg.Backend {
	case config.BackendDocker:
		cli, err := docker.NewClient()
		if err != nil {
			return nil, err
		}
		if err := cli.Ping(ctx); err != nil {
			_ = cli.Close()
			return nil, err
		}
		r := docker.NewRunner(cli, cfg.Docker.Image, cfg.Docker.Workdir, cfg.Timeout)
		r.RunID = s.runID
		r.Logger = s.logger
		s.docker = cli
		s.runner = r
		VerboseLog("Running tools in image %s", cfg.Docker.Image)
	default:
		s.runner = newLocalRunner(cfg)
	}
	return s, nil
}

// newLocalRunner builds the host backend. Tools run from the script
// directory when it exists, with unbuffered Python output like the
// docker backend.
func newLocalRunner(cfg *config.Config) *runner.Local {
	r := runner.NewLocal(cfg.Timeout)
	if info, err := os.Stat(cfg.ScriptDir); err == nil && info.IsDir() {
		r.Dir = cfg.ScriptDir
	}
	r.Env = []string{"PYTHONUNBUFFERED=1"}
	return r
}

// close writes the metrics file and releases the docker client.
func (s *session) close() {
	if err := s.metrics.WriteFile(s.cfg.MetricsFile); err != nil {
		s.logger.Warn("failed to write metrics", "error", err)
	}
	if s.docker != nil {
		_ = s.docker.Close()
	}
}

// tools returns the tool locations for the configured backend.
func (s *session) tools() matchering.Tools {
	return matchering.ToolsFromConfig(s.cfg)
}

// workflow wires a Workflow for project and ui.
func (s *session) workflow(project matchering.Project, ui matchering.UI) *matchering.Workflow {
	return &matchering.Workflow{
		Project: project,
		UI:      ui,
		Runner:  s.runner,
		Tools:   s.tools(),
		Metrics: s.metrics,
		Logger:  s.logger,
	}
}

// loadProject reads the project named by --project.
func (s *session) loadProject() (*rpp.Project, error) {
	if projectPath == "" {
		return nil, model.NewCLIError(model.ExitProjectError,
			"no project given (use --project <file.RPP>)")
	}
	VerboseLog("Loading project %s", projectPath)
	return rpp.Load(projectPath, s.cfg.EffectsDir)
}

// newTerminal creates the dialog front end on the command's streams.
func newTerminal(cmd *cobra.Command, presets dialog.Presets) *dialog.Terminal {
	return dialog.New(dialog.Options{
		In:      cmd.InOrStdin(),
		Out:     cmd.OutOrStdout(),
		Console: cmd.ErrOrStderr(),
		JSON:    jsonOutput,
		Presets: presets,
	})
}

// runFlow is the shared body of the match, analyze and render commands:
// load everything, then run flow under matchering.Guard so unexpected
// errors are shown like any other failure.
func runFlow(cmd *cobra.Command, presets dialog.Presets, flow func(context.Context, *matchering.Workflow) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	project, err := s.loadProject()
	if err != nil {
		return err
	}

	ui := newTerminal(cmd, presets)
	w := s.workflow(project, ui)

	err = matchering.Guard(ui, cmd.ErrOrStderr(), func() error {
		return flow(ctx, w)
	})
	if err != nil {
		s.logger.Debug("flow ended with error", "error", err)
	}
	return err
}
