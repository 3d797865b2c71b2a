// Package cli implements the cobra-based CLI commands for matchering-bridge.
//
// Each subcommand (match, analyze, render, watch, doctor, config) is defined
// in its own file within this package. This file defines the root command
// that serves as the parent for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput switches dialogs and command output to JSON lines.
	jsonOutput bool

	// verbose enables debug logging on stderr.
	verbose bool

	// configPath is the configuration file. Empty means the default
	// location (which may not exist).
	configPath string

	// projectPath is the REAPER project (.RPP) the flows operate on.
	projectPath string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action. It only provides
// help text and global flags; the flows live in the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "matchering-bridge",
		Short: "Run matchering on the selected items of a REAPER project",
		Long: `matchering-bridge connects a REAPER project to the matchering tools.

Select two items in the project, the first one being your song (TARGET)
and the second one the sound you want (REFERENCE). Then either analyze
them into a real-time JSFX plugin loaded on the target's track, or render
a mastered file onto a new "Mastered" track.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Configuration file (default: $XDG_CONFIG_HOME/matchering-bridge/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "",
		"REAPER project file (.RPP)")

	rootCmd.AddCommand(NewMatchCommand())
	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewRenderCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewDoctorCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	os.Exit(int(handleError(rootCmd.Execute(), os.Stderr)))
}

// handleError prints err (unless the user has already seen it in a dialog)
// and returns the exit code for it. CLIError values carry their own exit
// codes; other errors map to ExitGeneralError.
func handleError(err error, w io.Writer) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if !cliErr.Reported {
			printError(w, cliErr.Message, cliErr.Err)
		}
		return cliErr.Code
	}

	printError(w, err.Error(), nil)
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
