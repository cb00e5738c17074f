package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Msg     string                 `json:"msg"`
	Attrs   map[string]interface{} `json:"-"` // Remaining attributes
	Raw     string                 `json:"-"` // Original line
	IsValid bool                   `json:"-"` // Whether JSON parsing succeeded
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	Level   string         // Minimum level (debug, info, warn, error)
	Pattern *regexp.Regexp // Keep only lines matching this pattern
	NoColor bool           // Disable colors
}

// Viewer reads, filters, and formats brewindex log files.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
}

// NewViewer creates a log viewer writing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{
		config: cfg,
		out:    out,
	}
}

// Tail reads the last n lines from a log file and returns the entries
// that pass the filters.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	// Long attribute values (error chains, paths) can exceed the
	// default token size.
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	start := 0
	if len(lines) > n {
		start = len(lines) - n
	}
	lines = lines[start:]

	var entries []LogEntry
	for _, line := range lines {
		entry := v.parseLine(line)
		if v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Follow watches a log file for new entries and sends the ones that
// pass the filters to the channel. Blocks until the context is
// cancelled.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Only new lines are interesting in follow mode.
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}

				line = strings.TrimSuffix(line, "\n")
				if line == "" {
					continue
				}

				entry := v.parseLine(line)
				if v.matchesFilter(entry) {
					select {
					case entries <- entry:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}

// FormatEntry formats one entry for display.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		// Show unparseable lines as they are.
		return entry.Raw
	}

	timestamp := entry.Time.Format("15:04:05.000")
	level := v.formatLevel(entry.Level)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs []string
	for _, k := range keys {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, entry.Attrs[k]))
	}
	attrStr := ""
	if len(attrs) > 0 {
		attrStr = " " + strings.Join(attrs, " ")
	}

	return fmt.Sprintf("%s %s %s%s", timestamp, level, entry.Msg, attrStr)
}

// Print prints entries to the output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// parseLine parses a JSON log line into a LogEntry.
func (v *Viewer) parseLine(line string) LogEntry {
	entry := LogEntry{
		Raw:     line,
		IsValid: false,
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}

	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	if l, ok := data["level"].(string); ok {
		entry.Level = l
	}
	if m, ok := data["msg"].(string); ok {
		entry.Msg = m
	}

	entry.Attrs = make(map[string]interface{})
	for k, val := range data {
		if k != "time" && k != "level" && k != "msg" {
			entry.Attrs[k] = val
		}
	}

	return entry
}

// matchesFilter checks an entry against the configured filters.
func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.config.Level != "" {
		if parseLevel(entry.Level) < parseLevel(v.config.Level) {
			return false
		}
	}

	if v.config.Pattern != nil {
		if !v.config.Pattern.MatchString(entry.Raw) {
			return false
		}
	}

	return true
}

// formatLevel pads the level to a fixed width and colors it.
func (v *Viewer) formatLevel(level string) string {
	levelStr := strings.ToUpper(level)
	if len(levelStr) > 5 {
		levelStr = levelStr[:5]
	}
	levelStr = fmt.Sprintf("%-5s", levelStr)

	if v.config.NoColor {
		return levelStr
	}

	switch strings.ToLower(level) {
	case "debug":
		return "\033[90m" + levelStr + "\033[0m" // Gray
	case "info":
		return "\033[32m" + levelStr + "\033[0m" // Green
	case "warn", "warning":
		return "\033[33m" + levelStr + "\033[0m" // Yellow
	case "error":
		return "\033[31m" + levelStr + "\033[0m" // Red
	default:
		return levelStr
	}
}
