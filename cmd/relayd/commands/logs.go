package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/tcprelay/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsFile   string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the relay server logs.

The log file is taken from 'logging.output' when it names a file. When the
server logs to stdout/stderr the daemon log file is used instead, since
background mode redirects output there.

Examples:
  # Show last 100 lines (default)
  relayd logs

  # Follow logs in real-time
  relayd logs -f

  # Show logs since a specific time
  relayd logs --since "2026-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file to read (default: from configuration)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath := logsFile
	if logPath == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logPath = resolveLogFile(cfg.Logging.Output)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", logPath)
	}

	var since time.Time
	if logsSince != "" {
		var err error
		since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return followLogs(ctx, out, logPath, logsLines, since)
	}
	return showLogs(out, logPath, logsLines, since)
}

// resolveLogFile maps logging.output to the file holding server logs.
func resolveLogFile(output string) string {
	switch strings.ToLower(output) {
	case "", "stdout", "stderr":
		return GetDefaultLogFile()
	default:
		return output
	}
}

// showLogs writes the last lines of logFile, skipping entries older than
// since.
func showLogs(w io.Writer, logFile string, lines int, since time.Time) error {
	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	tail, err := tailLines(file, lines, since)
	if err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}
	for _, line := range tail {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// tailLines returns the last n lines of r whose timestamp is not before
// since. Lines without a recognizable timestamp are kept.
func tailLines(r io.Reader, n int, since time.Time) ([]string, error) {
	var kept []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !since.IsZero() {
			if ts := extractTimestamp(line); !ts.IsZero() && ts.Before(since) {
				continue
			}
		}
		kept = append(kept, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if n >= 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept, nil
}

// followLogs prints the tail of logFile, then new lines as they are
// written, until ctx is cancelled.
func followLogs(ctx context.Context, w io.Writer, logFile string, initialLines int, since time.Time) error {
	if err := showLogs(w, logFile, initialLines, since); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	reader := bufio.NewReader(file)

	_, _ = fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", logFile)

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			for {
				chunk, err := reader.ReadString('\n')
				partial += chunk
				if err != nil {
					// incomplete line, finish it on the next write
					break
				}
				_, _ = io.WriteString(w, partial)
				partial = ""
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// textTimeLayout is the timestamp prefix written by the text log handler.
const textTimeLayout = "2006-01-02 15:04:05"

// extractTimestamp finds the time of a log line. It understands the text
// handler prefix, an RFC3339 prefix and the JSON "time" field.
func extractTimestamp(line string) time.Time {
	if len(line) >= len(textTimeLayout) {
		if t, err := time.ParseInLocation(textTimeLayout, line[:len(textTimeLayout)], time.Local); err == nil {
			return t
		}
	}

	field, _, _ := strings.Cut(line, " ")
	if t, err := time.Parse(time.RFC3339Nano, field); err == nil {
		return t
	}

	const timeKey = `"time":"`
	if idx := strings.Index(line, timeKey); idx >= 0 {
		rest := line[idx+len(timeKey):]
		if end := strings.IndexByte(rest, '"'); end > 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}

	return time.Time{}
}
