package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/tcprelay/internal/cli/output"
	"github.com/marmos91/tcprelay/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective relayd configuration, with defaults and
environment overrides applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show effective config as YAML
  relayd config show

  # Show as JSON
  relayd config show --output json

  # Show what an environment override would produce
  RELAYD_RELAY_WORKERS=8 relayd config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	path := configPath(cmd)
	var cfg *config.Config
	if path != "" {
		cfg, err = config.MustLoad(path)
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
