// Package cli: doctor.go implements the "matchering-bridge doctor" command.
//
// doctor checks everything the flows depend on before the user finds out
// the hard way: the interpreter, the three tool scripts, the Effects
// directory, the Docker daemon (docker backend only) and, when --project
// is given, that the project parses. With --prune it also removes tool
// containers left behind by interrupted runs.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/config"
	"github.com/shinji-kodama/matchering-bridge/internal/docker"
	"github.com/shinji-kodama/matchering-bridge/internal/matchering"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
	"github.com/shinji-kodama/matchering-bridge/internal/rpp"
)

// doctorFlags holds the flag values for the doctor command.
type doctorFlags struct {
	// prune removes stale managed containers.
	prune bool

	// maxAge is the age after which a running tool container counts as
	// stale. Zero means twice the configured timeout.
	maxAge time.Duration
}

// doctorReport is the result of all checks.
type doctorReport struct {
	Backend  string   `json:"backend"`
	Problems []string `json:"problems"`
	Notes    []string `json:"notes,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`
}

// OK reports whether no check failed.
func (r *doctorReport) OK() bool {
	return len(r.Problems) == 0
}

// NewDoctorCommand creates the "doctor" cobra command.
func NewDoctorCommand() *cobra.Command {
	flags := &doctorFlags{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the matchering installation",
		Long: `Check that the interpreter, the matchering scripts and the Effects
directory exist, that Docker is reachable when the docker backend is
configured, and that the project (if given) can be read.

Examples:
  matchering-bridge doctor
  matchering-bridge doctor -p song.RPP
  matchering-bridge doctor --prune --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.prune, "prune", false, "Remove stale tool containers (docker backend)")
	cmd.Flags().DurationVar(&flags.maxAge, "max-age", 0,
		"Age after which a running tool container is stale (default: twice the timeout)")

	return cmd
}

// runDoctor runs every check and prints the report. The exit code names
// the first kind of problem found: tools, then Docker, then the project.
func runDoctor(ctx context.Context, out io.Writer, flags *doctorFlags) error {
	// Step 1: Configuration. A broken config is the first problem to fix,
	// so it is returned as is.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	report := &doctorReport{Backend: string(cfg.Backend)}

	// Step 2: Files.
	tools := matchering.ToolsFromConfig(cfg)
	report.Problems = append(report.Problems, tools.Check()...)
	toolProblems := len(report.Problems)

	// Step 3: Docker.
	dockerOK := true
	if cfg.Backend == config.BackendDocker || flags.prune {
		dockerOK = checkDocker(ctx, cfg, flags, report)
	}

	// Step 4: Project.
	if projectPath != "" {
		checkProject(cfg, report)
	}

	printDoctorReport(out, report)

	switch {
	case report.OK():
		return nil
	case toolProblems > 0:
		return model.ReportedError(model.ExitToolNotFound, "doctor found problems")
	case !dockerOK:
		return model.ReportedError(model.ExitDockerNotRunning, "doctor found problems")
	default:
		return model.ReportedError(model.ExitProjectError, "doctor found problems")
	}
}

// checkDocker pings the daemon and optionally prunes stale containers.
// It returns false when the daemon cannot be used.
func checkDocker(ctx context.Context, cfg *config.Config, flags *doctorFlags, report *doctorReport) bool {
	cli, err := docker.NewClient()
	if err != nil {
		report.Problems = append(report.Problems, err.Error())
		return false
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		report.Problems = append(report.Problems, err.Error())
		return false
	}
	report.Notes = append(report.Notes, "docker daemon reachable")
	VerboseLog("Docker daemon reachable")

	if !flags.prune {
		return true
	}
	maxAge := flags.maxAge
	if maxAge <= 0 {
		maxAge = 2 * cfg.Timeout
	}
	removed, err := docker.PruneTools(ctx, cli, maxAge)
	for _, c := range removed {
		report.Pruned = append(report.Pruned, fmt.Sprintf("%s (%s, %s)", c.Name, c.Tool, c.State))
	}
	if err != nil {
		report.Problems = append(report.Problems, err.Error())
		return false
	}
	return true
}

// checkProject loads the project and notes what the flows would see.
func checkProject(cfg *config.Config, report *doctorReport) {
	project, err := rpp.Load(projectPath, cfg.EffectsDir)
	if err != nil {
		report.Problems = append(report.Problems, err.Error())
		return
	}
	items := project.SelectedItems()
	report.Notes = append(report.Notes,
		fmt.Sprintf("project %s: %d tracks, %d selected items", projectPath, project.CountTracks(), len(items)))
	if len(items) != 2 {
		report.Notes = append(report.Notes, "select exactly 2 items (TARGET, then REFERENCE) before running match")
	}
}

// printDoctorReport outputs the report in text or JSON format.
func printDoctorReport(w io.Writer, report *doctorReport) {
	if IsJSONOutput() {
		out := struct {
			OK bool `json:"ok"`
			*doctorReport
		}{OK: report.OK(), doctorReport: report}
		if out.Problems == nil {
			out.Problems = []string{}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(w, "Error: failed to marshal JSON: %v\n", err)
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprint(w, formatDoctorReport(report))
}

// formatDoctorReport renders the report as text, one check per line.
func formatDoctorReport(report *doctorReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backend: %s\n", report.Backend)
	for _, p := range report.Problems {
		fmt.Fprintf(&b, "  [FAIL] %s\n", p)
	}
	for _, n := range report.Notes {
		fmt.Fprintf(&b, "  [ OK ] %s\n", n)
	}
	for _, p := range report.Pruned {
		fmt.Fprintf(&b, "  [PRUNED] %s\n", p)
	}
	if report.OK() {
		b.WriteString("All checks passed.\n")
	} else {
		fmt.Fprintf(&b, "%d problem(s) found.\n", len(report.Problems))
	}
	return b.String()
}
