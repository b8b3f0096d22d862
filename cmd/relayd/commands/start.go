package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/tcprelay/internal/logger"
	"github.com/marmos91/tcprelay/internal/telemetry"
	"github.com/marmos91/tcprelay/pkg/adapter/relay"
	"github.com/marmos91/tcprelay/pkg/api"
	"github.com/marmos91/tcprelay/pkg/config"
	"github.com/marmos91/tcprelay/pkg/server"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/tcprelay/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
	startPort  int
	startBind  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Without --config the default location $XDG_CONFIG_HOME/relayd/config.yaml is
used when it exists; otherwise the built-in defaults apply.

Examples:
  # Start in background (default)
  relayd start

  # Start in foreground on a custom port
  relayd start --foreground --port 9999

  # Start with custom config file
  relayd start --config /etc/relayd/config.yaml

  # Start with environment variable overrides
  RELAYD_LOGGING_LEVEL=DEBUG relayd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/relayd/relayd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/relayd/relayd.log)")
	startCmd.Flags().IntVarP(&startPort, "port", "p", 0, "Relay listen port (overrides relay.port)")
	startCmd.Flags().StringVar(&startBind, "bind", "", "Relay bind address (overrides relay.bind_address)")
}

// loadStartConfig loads the configuration for start. An explicit --config
// must exist; otherwise a missing default file falls back to defaults.
func loadStartConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if GetConfigFile() != "" {
		cfg, err = config.MustLoad(GetConfigFile())
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("port") {
		cfg.Relay.Port = startPort
	}
	if cmd.Flags().Changed("bind") {
		cfg.Relay.BindAddress = startBind
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon(cmd)
	}

	cfg, err := loadStartConfig(cmd)
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "relayd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by now, flush on a fresh one.
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "relayd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags: map[string]string{
			"relay_addr": net.JoinHostPort(cfg.Relay.BindAddress, strconv.Itoa(cfg.Relay.Port)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("relayd starting", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	// Metrics first, so the relay records from its first accept.
	metricsResult := config.InitializeMetrics(cfg)

	adapter, err := relay.New(cfg.Relay, metricsResult.Relay)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	srv := server.New(adapter, cfg.ShutdownTimeout)

	if metricsResult.Server != nil {
		srv.AddAuxiliary("metrics", metricsResult.Server)
	} else {
		logger.Info("Metrics collection disabled")
	}

	if cfg.ControlPlane.IsEnabled() {
		srv.AddAuxiliary("api", api.NewServer(cfg.ControlPlane, adapter))
	} else {
		logger.Info("API server disabled")
	}

	if pidFile != "" {
		if err := writePidFile(pidFile); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil {
		logger.Error("Server stopped with error", logger.KeyError, err)
		return err
	}
	return nil
}
