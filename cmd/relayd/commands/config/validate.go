package config

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/marmos91/tcprelay/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the relayd configuration file.

Checks for syntax errors, invalid values and conflicting ports.

Examples:
  # Validate default config
  relayd config validate

  # Validate specific config file
  relayd config validate --config /etc/relayd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	displayPath := path
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Relay address:   %s\n", net.JoinHostPort(cfg.Relay.BindAddress, fmt.Sprint(cfg.Relay.Port)))
	_, _ = fmt.Fprintf(out, "  Workers:         %d\n", cfg.Relay.Workers)
	if cfg.ControlPlane.IsEnabled() {
		_, _ = fmt.Fprintf(out, "  API address:     %s\n", cfg.ControlPlane.Address())
	} else {
		_, _ = fmt.Fprintf(out, "  API address:     disabled\n")
	}
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

// configWarnings flags settings that are valid but likely unintended.
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.ControlPlane.IsEnabled() {
		if ip := net.ParseIP(cfg.ControlPlane.BindAddress); ip != nil && !ip.IsLoopback() {
			warnings = append(warnings, fmt.Sprintf("control-plane API listens on %s without authentication", cfg.ControlPlane.BindAddress))
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.SampleRate == 0 {
		warnings = append(warnings, "telemetry is enabled with sample_rate 0; no traces will be exported")
	}

	return warnings
}
