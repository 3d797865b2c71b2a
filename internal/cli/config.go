// Package cli: config.go implements the "matchering-bridge config"
// command group.
//
//	config init   writes the default configuration as YAML
//	config show   prints the effective configuration
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/matchering-bridge/internal/config"
	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// NewConfigCommand creates the "config" cobra command and its subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Write the built-in defaults to the configuration file (the --config
path, or $XDG_CONFIG_HOME/matchering-bridge/config.yaml).

Examples:
  matchering-bridge config init
  matchering-bridge config init --config ./matchering.yaml --force`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the configuration file and
MATCHERING_* environment variables have been merged.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}
}

func runConfigInit(out io.Writer, force bool) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return model.NewCLIError(model.ExitGeneralError,
			"could not determine the configuration directory (use --config)")
	}

	if err := config.WriteDefault(path, force); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.Marshal(map[string]string{"path": path})
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

func runConfigShow(out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(cfg.View(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	data, err := cfg.EncodeYAML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = out.Write(data)
	return err
}
