package calllog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return rows
}

func TestCSVSink_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call_log.csv")
	s := NewCSVSink(path)
	for i := 0; i < 3; i++ {
		rec := Record{
			TimestampStart:   "2025-01-02T03:04:05Z",
			DurationOrStatus: "42",
			Summary:          "caller asked about hours",
			TargetNumber:     "+15550001111",
			SourceNumber:     "+15550002222",
		}
		if err := s.Write(rec); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d rows", len(rows))
	}
	if rows[0][0] != "timestamp_start" || rows[0][4] != "source_number" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	for _, r := range rows[1:] {
		if r[0] == "timestamp_start" {
			t.Fatalf("duplicate header row found")
		}
	}
}

func TestCSVSink_EmptySummaryAllowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call_log.csv")
	s := NewCSVSink(path)
	if err := s.Write(Record{DurationOrStatus: "failed", TargetNumber: "+15550003333"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows := readRows(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[1][2] != "" {
		t.Fatalf("expected empty summary field, got %q", rows[1][2])
	}
}

func TestCSVSink_ReopenedSinkKeepsSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call_log.csv")
	if err := NewCSVSink(path).Write(Record{DurationOrStatus: "12"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	// A fresh sink over the same file must not repeat the header.
	if err := NewCSVSink(path).Write(Record{DurationOrStatus: "13"}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
}
