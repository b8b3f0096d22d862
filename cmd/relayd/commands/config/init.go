package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/tcprelay/internal/cli/prompt"
	"github.com/marmos91/tcprelay/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample configuration file",
	Long: `Create a sample relayd configuration file with every default spelled out.

By default, the file is created at $XDG_CONFIG_HOME/relayd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  relayd config init

  # Initialize with custom path
  relayd config init --config /etc/relayd/config.yaml

  # Overwrite an existing file without asking
  relayd config init --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	force := initForce
	if !force {
		if _, err := os.Stat(path); err == nil {
			ok, err := prompt.Confirm(fmt.Sprintf("%s already exists. Overwrite", path), false)
			switch {
			case errors.Is(err, prompt.ErrNotInteractive):
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			case err != nil:
				return err
			case !ok:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			force = true
		}
	}

	if err := config.InitConfigToPath(path, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: relayd start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: relayd start --config %s\n", path)
	return nil
}
