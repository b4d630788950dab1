package logging

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed log line.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Session   string         `json:"session,omitempty"`
	Pane      string         `json:"pane,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries. Unset fields match everything and set fields are
// combined with AND.
type Filter struct {
	// Level keeps entries at or above this level.
	Level     string
	Since     time.Time
	Session   string
	Pane      string
	RequestID string
	// Contains keeps entries whose message contains this substring.
	Contains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadEntries parses the live log in dir and every rotated backup, returning
// the entries in timestamp order. Lines that are not JSON are skipped.
func ReadEntries(dir string) ([]Entry, error) {
	paths := Backups(dir)
	slices.Reverse(paths)
	paths = append(paths, filepath.Join(dir, LogFileName))

	var entries []Entry
	found := false
	for _, path := range paths {
		fileEntries, err := readLogFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		entries = append(entries, fileEntries...)
	}
	if !found {
		return nil, fmt.Errorf("no log file in %s", dir)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func readLogFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return entries, nil
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	str := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}

	entry := Entry{
		Level:     str("level"),
		Message:   str("msg"),
		Session:   str("session"),
		Pane:      str("pane"),
		RequestID: str("request_id"),
	}
	if ts := str("time"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Time = t
		}
	}
	if len(raw) > 0 {
		entry.Attrs = raw
	}
	return entry, nil
}

// Apply returns the entries matching f.
func (f Filter) Apply(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f Filter) matches(e Entry) bool {
	if f.Level != "" {
		floor, ok := levelOrder[strings.ToUpper(f.Level)]
		got, known := levelOrder[e.Level]
		if ok && known && got < floor {
			return false
		}
	}
	switch {
	case !f.Since.IsZero() && e.Time.Before(f.Since):
		return false
	case f.Session != "" && e.Session != f.Session:
		return false
	case f.Pane != "" && e.Pane != f.Pane:
		return false
	case f.RequestID != "" && e.RequestID != f.RequestID:
		return false
	case f.Contains != "" && !strings.Contains(e.Message, f.Contains):
		return false
	}
	return true
}

// ExportFormats returns the formats accepted by Export.
func ExportFormats() []string {
	return []string{"text", "json", "csv"}
}

// Export writes entries to w as "text", "json" or "csv".
func Export(w io.Writer, entries []Entry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []Entry{}
		}
		return enc.Encode(entries)
	case "text":
		return exportText(w, entries)
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}
}

func exportText(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		parts := []string{
			fmt.Sprintf("[%s]", e.Time.Format("2006-01-02 15:04:05.000")),
			e.Level,
			"-",
			e.Message,
		}

		var scope []string
		if e.Session != "" {
			scope = append(scope, "session="+e.Session)
		}
		if e.Pane != "" {
			scope = append(scope, "pane="+e.Pane)
		}
		if e.RequestID != "" {
			scope = append(scope, "request="+e.RequestID)
		}
		if len(scope) > 0 {
			parts = append(parts, "("+strings.Join(scope, ", ")+")")
		}
		if len(e.Attrs) > 0 {
			attrs, _ := json.Marshal(e.Attrs)
			parts = append(parts, string(attrs))
		}

		if _, err := io.WriteString(w, strings.Join(parts, " ")+"\n"); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	return nil
}

func exportCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"time", "level", "message", "session", "pane", "request_id", "attrs"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		attrs := ""
		if len(e.Attrs) > 0 {
			if b, err := json.Marshal(e.Attrs); err == nil {
				attrs = string(b)
			}
		}
		record := []string{
			e.Time.Format(time.RFC3339Nano),
			e.Level,
			e.Message,
			e.Session,
			e.Pane,
			e.RequestID,
			attrs,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
