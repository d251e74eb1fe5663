package calllog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// Record is one row of the durable call log.
type Record struct {
	TimestampStart   string
	DurationOrStatus string
	Summary          string
	TargetNumber     string
	SourceNumber     string
}

// Sink appends structured call records to durable storage.
type Sink interface {
	Write(rec Record) error
}

var header = []string{"timestamp_start", "duration_or_status", "call_summary", "target_number", "source_number"}

// CSVSink writes records to a flat CSV file, emitting the header row exactly
// once when the file is first created.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink creates a sink backed by the file at path. The file is created
// lazily on first write.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Write(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	needHeader := false
	if info, err := os.Stat(s.path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		needHeader = true
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open call log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write call log header: %w", err)
		}
	}
	row := []string{rec.TimestampStart, rec.DurationOrStatus, rec.Summary, rec.TargetNumber, rec.SourceNumber}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write call log row: %w", err)
	}
	w.Flush()
	return w.Error()
}
