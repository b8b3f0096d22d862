//go:build !windows

package commands

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

// startDaemon re-executes relayd in the foreground as a detached session
// leader with output redirected to the log file.
func startDaemon(cmd *cobra.Command) error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if pid, running := isProcessRunning(pidPath); running {
		return fmt.Errorf("relayd is already running (PID %d)\nUse 'relayd stop' to stop the running instance", pid)
	}
	_ = os.Remove(pidPath)

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}
	if cmd.Flags().Changed("port") {
		daemonArgs = append(daemonArgs, "--port", strconv.Itoa(startPort))
	}
	if cmd.Flags().Changed("bind") {
		daemonArgs = append(daemonArgs, "--bind", startBind)
	}

	child := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFileHandle.Close() }()

	child.Stdout = logFileHandle
	child.Stderr = logFileHandle
	child.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "relayd started in background (PID %d)\n", child.Process.Pid)
	_, _ = fmt.Fprintf(out, "  PID file: %s\n", pidPath)
	_, _ = fmt.Fprintf(out, "  Log file: %s\n", logPath)
	_, _ = fmt.Fprintln(out, "\nUse 'relayd stop' to stop the server")
	_, _ = fmt.Fprintln(out, "Use 'relayd status' to check server status")

	return nil
}
