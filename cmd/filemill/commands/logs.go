package commands

import (
	"bufio"
	"bytes"
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

	"github.com/filemill/filemill/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Show the most recent entries of the FileMill server log.

Reads the file named by 'logging.output' in the configuration. When the
server logs to stdout or stderr there is no file to read and the command
says so instead.

Examples:
  # Show the last 100 lines (default)
  filemill logs

  # Show the last 50 lines
  filemill logs -n 50

  # Follow new entries as they are written
  filemill logs -f

  # Only entries at or after a point in time
  filemill logs --since "2026-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := cfg.Logging.Output
	switch path {
	case "stdout", "stderr":
		return fmt.Errorf("server is logging to %s, not a file; point 'logging.output' at a file path to use this command", path)
	case "":
		return fmt.Errorf("'logging.output' is not set; point it at a file path to use this command")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read log file %s: %w", path, err)
	}

	var since time.Time
	if logsSince != "" {
		since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since value (want RFC3339): %w", err)
		}
	}

	if err := printTail(os.Stdout, path, logsLines, since); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}
	return followLog(path)
}

// printTail writes the last n lines of the log, skipping entries older
// than since.
func printTail(w io.Writer, path string, n int, since time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	lines, err := tailLines(f, n, since)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}

// tailLines reads the file backwards in fixed-size blocks until n lines
// are collected, so a multi-gigabyte log is not read in full for the
// default 100 lines.
func tailLines(f *os.File, n int, since time.Time) ([]string, error) {
	const block = 64 * 1024

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var (
		lines   []string
		partial []byte
		offset  = info.Size()
	)
	buf := make([]byte, block)

	for offset > 0 && len(lines) < n {
		readLen := int64(block)
		if offset < readLen {
			readLen = offset
		}
		offset -= readLen

		if _, err := f.ReadAt(buf[:readLen], offset); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read log file: %w", err)
		}

		// The chunk's first segment may continue a line from the block
		// before it; carry it over instead of emitting it.
		chunk := append(append([]byte{}, buf[:readLen]...), partial...)
		parts := bytes.Split(chunk, []byte{'\n'})
		partial = parts[0]

		for i := len(parts) - 1; i >= 1 && len(lines) < n; i-- {
			if line := string(parts[i]); line != "" && keepEntry(line, since) {
				lines = append(lines, line)
			}
		}
	}
	if offset == 0 && len(partial) > 0 && len(lines) < n {
		if line := string(partial); keepEntry(line, since) {
			lines = append(lines, line)
		}
	}

	// Collected newest-first; restore file order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// keepEntry reports whether a line passes the --since filter. Lines whose
// timestamp cannot be parsed are kept.
func keepEntry(line string, since time.Time) bool {
	if since.IsZero() {
		return true
	}
	ts := entryTime(line)
	return ts.IsZero() || !ts.Before(since)
}

// entryTime extracts the timestamp of a log line. Text lines start with
// a "[2006-01-02 15:04:05]" prefix in local time; JSON lines carry an
// RFC3339 "time" field.
func entryTime(line string) time.Time {
	if strings.HasPrefix(line, "[") {
		if end := strings.IndexByte(line, ']'); end > 0 {
			if t, err := time.ParseInLocation("2006-01-02 15:04:05", line[1:end], time.Local); err == nil {
				return t
			}
		}
	}

	const marker = `"time":"`
	if idx := strings.Index(line, marker); idx >= 0 {
		rest := line[idx+len(marker):]
		if end := strings.IndexByte(rest, '"'); end > 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// followLog prints new entries as the server writes them. A rename or
// remove of the file is treated as log rotation: the remaining content is
// drained and the new file at the same path is picked up from the top.
func followLog(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	reader := bufio.NewReader(f)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Write):
				copyNewLines(os.Stdout, reader)

			case event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove):
				copyNewLines(os.Stdout, reader)
				_ = f.Close()
				f, reader, err = reopenLog(ctx, watcher, path)
				if err != nil {
					return err
				}
				if f == nil {
					return nil
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// copyNewLines drains complete lines that have appeared since the last
// read.
func copyNewLines(w io.Writer, r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			fmt.Fprint(w, line)
		}
		if err != nil {
			return
		}
	}
}

// reopenLog waits for the rotated file to reappear at path and starts
// reading it from the beginning. Returns a nil file if interrupted while
// waiting.
func reopenLog(ctx context.Context, watcher *fsnotify.Watcher, path string) (*os.File, *bufio.Reader, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil, nil
		case <-ticker.C:
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			if err := watcher.Add(path); err != nil {
				_ = f.Close()
				return nil, nil, fmt.Errorf("failed to rewatch log file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Log rotated; following new %s\n", path)
			return f, bufio.NewReader(f), nil
		}
	}
}
