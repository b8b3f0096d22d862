package commands

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tcprelay/internal/cli/output"
	"github.com/marmos91/tcprelay/internal/cli/timeutil"
	"github.com/marmos91/tcprelay/pkg/adapter"
	"github.com/marmos91/tcprelay/pkg/apiclient"
	"github.com/marmos91/tcprelay/pkg/config"
)

var (
	statusOutput      string
	statusPidFile     string
	statusAPIURL      string
	statusConnections bool
	statusIP          string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the relay server.

The PID file tells whether a daemon is running; the control-plane API reports
readiness, counters and, with --connections, the live connection table.

Examples:
  # Check status (API address taken from the configuration)
  relayd status

  # Include the connection table, filtered by peer address
  relayd status --connections --ip 10.0.0.3

  # Output as JSON
  relayd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/relayd/relayd.pid)")
	statusCmd.Flags().StringVar(&statusAPIURL, "api-url", "", "Control-plane API base URL (default: from controlplane config)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().BoolVar(&statusConnections, "connections", false, "List live connections")
	statusCmd.Flags().StringVar(&statusIP, "ip", "", "Only list connections from this peer IP (implies --connections)")
}

// ServerStatus is the combined view printed by relayd status.
type ServerStatus struct {
	Running     bool                     `json:"running" yaml:"running"`
	PID         int                      `json:"pid,omitempty" yaml:"pid,omitempty"`
	Ready       bool                     `json:"ready" yaml:"ready"`
	Message     string                   `json:"message" yaml:"message"`
	Stats       *adapter.Stats           `json:"stats,omitempty" yaml:"stats,omitempty"`
	Connections []adapter.ConnectionInfo `json:"connections,omitempty" yaml:"connections,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	baseURL := statusAPIURL
	if baseURL == "" {
		baseURL = defaultAPIURL(GetConfigFile())
	}

	client := apiclient.New(baseURL).WithTimeout(2 * time.Second)
	status := collectStatus(client, pidPath, statusConnections || statusIP != "", statusIP)

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, status)
	case output.FormatYAML:
		return output.PrintYAML(out, status)
	default:
		return printStatusTable(out, status, time.Now())
	}
}

// defaultAPIURL derives the API base URL from the control-plane config.
// A wildcard bind address is reached through loopback.
func defaultAPIURL(configFile string) string {
	cfg, err := config.Load(configFile)
	if err != nil {
		cfg = config.GetDefaultConfig()
	}

	host := cfg.ControlPlane.BindAddress
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.ControlPlane.Port))
}

// collectStatus combines the PID file with what the API reports.
func collectStatus(client *apiclient.Client, pidPath string, withConns bool, ip string) ServerStatus {
	status := ServerStatus{Message: "Server is not running"}

	if pid, running := isProcessRunning(pidPath); running {
		status.Running = true
		status.PID = pid
	}

	ready, err := client.Ready()
	if err != nil {
		var apiErr *apiclient.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.IsUnavailable():
			status.Running = true
			status.Message = "Server is running but the relay is not listening yet"
		case status.Running:
			status.Message = fmt.Sprintf("Server process exists but the API is unreachable: %v", err)
		}
		return status
	}

	status.Running = true
	status.Ready = true
	status.Message = fmt.Sprintf("Relay is listening on %s", ready.ListenAddress)

	if stats, err := client.Stats(); err == nil {
		status.Stats = stats
	}

	if withConns {
		conns, err := client.Connections(ip)
		if err != nil {
			status.Message = fmt.Sprintf("%s (connection list unavailable: %v)", status.Message, err)
		} else {
			status.Connections = conns
		}
	}

	return status
}

func printStatusTable(w io.Writer, status ServerStatus, now time.Time) error {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "relayd Server Status")
	_, _ = fmt.Fprintln(w, "====================")
	_, _ = fmt.Fprintln(w)

	var kv output.KeyValues
	switch {
	case status.Ready:
		kv.Add("Status", "● Running")
	case status.Running:
		kv.Add("Status", "● Running (not ready)")
	default:
		kv.Add("Status", "○ Stopped")
	}
	if status.PID > 0 {
		kv.Add("PID", strconv.Itoa(status.PID))
	}
	if s := status.Stats; s != nil {
		kv.Add("Listen", s.ListenAddress)
		kv.Add("Workers", strconv.Itoa(s.Workers))
		kv.Add("Queued tasks", strconv.Itoa(s.QueuedTasks))
		kv.Add("Connections", strconv.Itoa(int(s.ActiveConnections)))
		kv.Add("Accepted", strconv.FormatUint(s.TotalAccepted, 10))
		kv.Add("Delivered", strconv.FormatUint(s.FramesDelivered, 10))
		kv.Add("Malformed", strconv.FormatUint(s.FramesMalformed, 10))
		kv.Add("Not found", strconv.FormatUint(s.FramesNotFound, 10))
	}
	if err := output.PrintKeyValues(w, kv); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  %s\n", status.Message)

	if status.Connections != nil {
		_, _ = fmt.Fprintln(w)
		if err := output.PrintTable(w, connectionTable(status.Connections, now)); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

// connectionTable renders connections one per row.
func connectionTable(conns []adapter.ConnectionInfo, now time.Time) *output.Table {
	t := output.NewTable("ID", "PEER", "OUTBOUND", "ARMED", "AGE")
	for _, c := range conns {
		armed := "no"
		if c.WriteArmed {
			armed = "yes"
		}
		t.AddRow(
			strconv.Itoa(c.ID),
			net.JoinHostPort(c.RemoteIP, strconv.Itoa(c.RemotePort)),
			strconv.Itoa(c.Outbound),
			armed,
			timeutil.Since(c.ConnectedAt, now),
		)
	}
	return t
}
