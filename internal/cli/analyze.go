// Package cli: analyze.go implements the "matchering-bridge analyze" and
// "matchering-bridge render" commands.
//
// Both skip the action question of "match" and run one flow directly.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/dialog"
	"github.com/shinji-kodama/matchering-bridge/internal/matchering"
)

// NewAnalyzeCommand creates the "analyze" cobra command.
func NewAnalyzeCommand() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build a real-time JSFX plugin from the two selected items",
		Long: `Analyze the selected TARGET and REFERENCE items, generate a JSFX
plugin from the result and load it on the target's track.

Examples:
  matchering-bridge analyze -p song.RPP
  matchering-bridge analyze -p song.RPP --profile "Steely Dan"`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			var presets dialog.Presets
			if cmd.Flags().Changed("profile") {
				presets.Profile = &profile
			}
			return runFlow(cmd, presets, analyzeFlow)
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "",
		"Profile name (empty for the default profile)")

	return cmd
}

// NewRenderCommand creates the "render" cobra command.
func NewRenderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render a mastered file from the two selected items",
		Long: `Run the full matchering render on the selected TARGET and REFERENCE
items. The result is written next to the target as <name>_mastered.wav and
placed on a new "Mastered" track.

Examples:
  matchering-bridge render -p song.RPP`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(cmd, dialog.Presets{}, renderFlow)
		},
	}
}

func analyzeFlow(ctx context.Context, w *matchering.Workflow) error {
	if err := w.CheckInterpreter(); err != nil {
		return err
	}
	sel, err := w.SelectFiles()
	if err != nil {
		return err
	}
	return w.Analyze(ctx, sel)
}

func renderFlow(ctx context.Context, w *matchering.Workflow) error {
	if err := w.CheckInterpreter(); err != nil {
		return err
	}
	sel, err := w.SelectFiles()
	if err != nil {
		return err
	}
	return w.Offline(ctx, sel)
}
