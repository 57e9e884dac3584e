package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/wagate/cli"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the gateway log",
		Long: `Prints the gateway log file. JSON lines are pretty-printed; other lines are
shown as written.

Examples:
  # Follow the log
  wagate logs -f

  # Last 100 lines as JSON Lines
  wagate logs --tail 100 --json`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("file", "", "Read this log file instead of the configured one")
	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cfg, _, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}
		path = logging.FilePath(logging.ConfigFrom(cfg))
		if _, err := os.Stat(path); path == "" || err != nil {
			latest, latestErr := findLatestLogFile(paths.LogDir())
			if latestErr != nil {
				return latestErr
			}
			path = latest
		}
	}

	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	jsonOutput := cli.GetOptions(cmd).JSONOutput
	out := cmd.OutOrStdout()

	location, err := tailOffset(path, tailLines)
	if err != nil {
		return err
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: location, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", path, err)
	}
	defer t.Cleanup()

	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		if line.Text == "" {
			continue
		}
		if jsonOutput {
			printLogJSON(out, line.Text)
		} else {
			printLogText(out, line.Text)
		}
	}
	return t.Err()
}

// tailOffset returns the byte offset of the last n lines of path, or 0 when
// n is negative.
func tailOffset(path string, n int) (int64, error) {
	if n < 0 {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read log %s: %w", path, err)
	}
	if n == 0 {
		return int64(len(data)), nil
	}
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}
	offset := end
	for found := 0; offset > 0; offset-- {
		if data[offset-1] == '\n' {
			found++
			if found == n {
				break
			}
		}
	}
	return int64(offset), nil
}

// findLatestLogFile finds the most recently modified non-empty file in a directory.
func findLatestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latestPath string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if latestPath == "" || info.ModTime().After(latestMod) {
			latestPath = filepath.Join(dir, entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latestPath == "" {
		return "", fmt.Errorf("no log files found in %s", dir)
	}
	return latestPath, nil
}

// printLogJSON prints a log line in JSON Lines format.
func printLogJSON(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		logMap = map[string]interface{}{"raw_line": line}
	}
	data, _ := json.Marshal(logMap)
	fmt.Fprintln(w, string(data))
}

// printLogText pretty-prints a log line for human consumption.
func printLogText(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		fmt.Fprintln(w, line)
		return
	}
	t := cli.DefaultTheme

	ts, _ := logMap["time"].(string)
	level, _ := logMap["level"].(string)
	msg, _ := logMap["msg"].(string)
	component, _ := logMap["component"].(string)

	parsedTime, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		parsedTime, _ = time.Parse(time.RFC3339, ts)
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = t.Error
	case "warning":
		levelStyle = t.Warning
	case "info":
		levelStyle = t.Info
	default:
		levelStyle = t.Muted
	}

	var keys []string
	for k := range logMap {
		if k != "time" && k != "level" && k != "msg" && k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", t.Muted.Render(k), logMap[k]))
	}

	text := fmt.Sprintf("%s %s [%s] %s %s",
		parsedTime.Format("15:04:05"),
		levelStyle.Render(strings.ToUpper(level)),
		t.Accent.Render(component),
		msg,
		strings.Join(fields, " "),
	)
	fmt.Fprintln(w, strings.TrimRight(text, " "))
}
