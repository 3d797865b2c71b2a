// Package cli: match.go implements the "matchering-bridge match" command.
//
// match is the main flow: check the interpreter, read the two selected
// items and ask whether to build a real-time plugin or render offline.
// The question and the profile prompt can be answered up front with
// --action and --profile, which is how the command runs without a
// terminal (e.g. from a REAPER custom action).
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/dialog"
	"github.com/shinji-kodama/matchering-bridge/internal/matchering"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// matchFlags holds the flag values for the match command.
type matchFlags struct {
	// action answers the Yes/No/Cancel question. Empty means ask.
	action string

	// profile answers the profile prompt of the analyze flow.
	profile string
}

// NewMatchCommand creates the "match" cobra command.
func NewMatchCommand() *cobra.Command {
	flags := &matchFlags{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Analyze or render the two selected items",
		Long: `Run matchering on the two selected items of the project.

The first selected item is the TARGET (your song), the second the
REFERENCE (the desired sound). You are asked whether to analyze them into
a real-time JSFX plugin or to render a mastered file offline.

Examples:
  matchering-bridge match -p song.RPP
  matchering-bridge match -p song.RPP --action analyze --profile "Rock Ref"
  matchering-bridge match -p song.RPP --action offline --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := matchPresets(flags, cmd.Flags().Changed("profile"))
			if err != nil {
				return err
			}
			return runFlow(cmd, presets, func(ctx context.Context, w *matchering.Workflow) error {
				return w.Run(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&flags.action, "action", "",
		"Answer the action question: analyze (yes), offline (no) or cancel")
	cmd.Flags().StringVar(&flags.profile, "profile", "",
		"Answer the profile prompt (empty for the default profile)")

	return cmd
}

// matchPresets turns the flags into dialog presets. profileSet tells an
// explicitly empty --profile (the default profile) from an absent one.
func matchPresets(flags *matchFlags, profileSet bool) (dialog.Presets, error) {
	var presets dialog.Presets
	if flags.action != "" {
		choice, err := model.ParseChoice(flags.action)
		if err != nil {
			return presets, model.WrapCLIError(model.ExitGeneralError, "invalid --action", err)
		}
		presets.Action = &choice
	}
	if profileSet {
		profile := flags.profile
		presets.Profile = &profile
	}
	return presets, nil
}
