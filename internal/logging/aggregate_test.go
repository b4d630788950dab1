package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadEntries(t *testing.T) {
	t.Run("merges backups in time order", func(t *testing.T) {
		dir := t.TempDir()
		live := filepath.Join(dir, LogFileName)
		writeLog(t, live+".2", `{"time":"2026-01-01T10:00:00Z","level":"INFO","msg":"first","session":"dev"}`)
		writeLog(t, live+".1", `{"time":"2026-01-01T10:00:01Z","level":"WARN","msg":"second","pane":"%3"}`)
		writeLog(t, live,
			`{"time":"2026-01-01T10:00:02Z","level":"ERROR","msg":"third","request_id":"r1","window":"@4"}`,
			`not json`,
			``,
		)

		entries, err := ReadEntries(dir)
		if err != nil {
			t.Fatalf("ReadEntries failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("got %d entries, want 3", len(entries))
		}
		for i, want := range []string{"first", "second", "third"} {
			if entries[i].Message != want {
				t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, want)
			}
		}
		if entries[0].Session != "dev" || entries[1].Pane != "%3" || entries[2].RequestID != "r1" {
			t.Errorf("scope fields not parsed: %+v", entries)
		}
		if entries[2].Attrs["window"] != "@4" {
			t.Errorf("attrs = %v, want window", entries[2].Attrs)
		}
		if entries[0].Attrs != nil {
			t.Errorf("entry without extra fields should have nil attrs, got %v", entries[0].Attrs)
		}
	})

	t.Run("missing log", func(t *testing.T) {
		if _, err := ReadEntries(t.TempDir()); err == nil {
			t.Error("expected an error for a directory without logs")
		}
	})

	t.Run("reads logger output", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatal(err)
		}
		logger.WithSession("dev").WithPane("%1").Debug("sent text")
		_ = logger.Close()

		entries, err := ReadEntries(dir)
		if err != nil {
			t.Fatalf("ReadEntries failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Pane != "%1" || entries[0].Time.IsZero() {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})
}

func TestFilter_Apply(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Time: base, Level: LevelDebug, Message: "poll", Session: "dev", Pane: "%1"},
		{Time: base.Add(time.Second), Level: LevelInfo, Message: "window created", Session: "dev", RequestID: "r1"},
		{Time: base.Add(2 * time.Second), Level: LevelWarn, Message: "rollback failed", Session: "ops", RequestID: "r2"},
		{Time: base.Add(3 * time.Second), Level: LevelError, Message: "send failed", Session: "dev", Pane: "%2"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter", Filter{}, []string{"poll", "window created", "rollback failed", "send failed"}},
		{"level", Filter{Level: "warn"}, []string{"rollback failed", "send failed"}},
		{"since", Filter{Since: base.Add(2 * time.Second)}, []string{"rollback failed", "send failed"}},
		{"session", Filter{Session: "ops"}, []string{"rollback failed"}},
		{"pane", Filter{Pane: "%2"}, []string{"send failed"}},
		{"request", Filter{RequestID: "r1"}, []string{"window created"}},
		{"contains", Filter{Contains: "failed"}, []string{"rollback failed", "send failed"}},
		{"combined", Filter{Session: "dev", Level: "info"}, []string{"window created", "send failed"}},
		{"no match", Filter{Pane: "%9"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(entries)
			var msgs []string
			for _, e := range got {
				msgs = append(msgs, e.Message)
			}
			if strings.Join(msgs, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %v, want %v", msgs, tt.want)
			}
		})
	}
}

func TestExport(t *testing.T) {
	entries := []Entry{{
		Time:      time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Level:     LevelInfo,
		Message:   "window created",
		Session:   "dev",
		RequestID: "r1",
		Attrs:     map[string]any{"window": "@4"},
	}}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, "text"); err != nil {
			t.Fatal(err)
		}
		want := `[2026-01-01 10:00:00.000] INFO - window created (session=dev, request=r1) {"window":"@4"}` + "\n"
		if buf.String() != want {
			t.Errorf("text = %q, want %q", buf.String(), want)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, "JSON"); err != nil {
			t.Fatal(err)
		}
		var decoded []Entry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 1 || decoded[0].RequestID != "r1" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("json empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, nil, "json"); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("empty export = %q, want []", buf.String())
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, entries, "csv"); err != nil {
			t.Fatal(err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 2 || records[0][0] != "time" || records[1][2] != "window created" || records[1][6] != `{"window":"@4"}` {
			t.Errorf("records = %v", records)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := Export(&bytes.Buffer{}, entries, "xml"); err == nil {
			t.Error("expected an error for xml")
		}
	})
}
