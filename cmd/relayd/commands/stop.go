package commands

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
	stopWait    time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the relay server",
	Long: `Stop a running relay server.

By default, sends SIGTERM for graceful shutdown and waits for the process to
exit. Use --force for immediate termination with SIGKILL.

Examples:
  # Stop server (uses default PID file)
  relayd stop

  # Stop server using custom PID file
  relayd stop --pid-file /var/run/relayd.pid

  # Force stop (SIGKILL)
  relayd stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/relayd/relayd.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill (SIGKILL) instead of graceful shutdown (SIGTERM)")
	stopCmd.Flags().DurationVar(&stopWait, "wait", 35*time.Second, "How long to wait for the process to exit (0 to return immediately)")
}

func runStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nIs the server running?", pidPath)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	sig, name := syscall.SIGTERM, "SIGTERM"
	if stopForce {
		sig, name = syscall.SIGKILL, "SIGKILL"
	}
	_, _ = fmt.Fprintf(out, "Sending %s to process %d...\n", name, pid)

	if err := signalProcess(process, sig); err != nil {
		if errors.Is(err, errProcessDone) {
			_, _ = fmt.Fprintln(out, "Server already stopped")
			_ = os.Remove(pidPath)
			return nil
		}
		return err
	}

	if stopWait <= 0 {
		_, _ = fmt.Fprintln(out, "Shutdown signal sent.")
		return nil
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if _, running := isProcessRunning(pidPath); !running {
			_, _ = fmt.Fprintln(out, "Server stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("process %d still running after %s (use --force to kill it)", pid, stopWait)
}

func signalProcess(process *os.Process, sig os.Signal) error {
	err := process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}
	return nil
}
