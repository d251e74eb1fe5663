package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chadiek/voicebot/internal/calllog"
	"github.com/chadiek/voicebot/internal/transcript"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	out   string
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcriptText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.out, f.err
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memSink struct {
	mu   sync.Mutex
	rows []calllog.Record
	err  error
}

func (m *memSink) Write(rec calllog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rec)
	return nil
}

func (m *memSink) all() []calllog.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]calllog.Record, len(m.rows))
	copy(out, m.rows)
	return out
}

func TestHandle_CompletedCallWithTranscript(t *testing.T) {
	store := transcript.NewStore()
	store.Append("CA1", "hello how are you")
	sum := &fakeSummarizer{out: "Short chat about wellbeing."}
	sink := &memSink{}
	h := NewHandler(store, sum, sink)

	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	err := h.Handle(context.Background(), StatusEvent{
		CallID: "CA1", Status: "completed", Duration: "42",
		To: "+100", From: "+200", StartedAt: started,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	rows := sink.all()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.DurationOrStatus != "42" {
		t.Errorf("duration = %q, want 42", row.DurationOrStatus)
	}
	if row.Summary != "Short chat about wellbeing." {
		t.Errorf("summary = %q", row.Summary)
	}
	if row.TargetNumber != "+100" || row.SourceNumber != "+200" {
		t.Errorf("numbers = %q/%q", row.TargetNumber, row.SourceNumber)
	}
	if row.TimestampStart != "2026-03-14T09:30:00Z" {
		t.Errorf("timestamp = %q", row.TimestampStart)
	}
	if store.Len() != 0 {
		t.Errorf("transcript entry not evicted")
	}
}

func TestHandle_EmptyTranscriptSkipsSummarizer(t *testing.T) {
	store := transcript.NewStore()
	sum := &fakeSummarizer{out: "should not appear"}
	sink := &memSink{}
	h := NewHandler(store, sum, sink)

	err := h.Handle(context.Background(), StatusEvent{
		CallID: "CA2", Status: "no-answer", To: "+100", From: "+200",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sum.callCount() != 0 {
		t.Fatalf("summarizer called for empty transcript")
	}
	rows := sink.all()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].DurationOrStatus != "no-answer" {
		t.Errorf("duration_or_status = %q, want no-answer", rows[0].DurationOrStatus)
	}
	if rows[0].Summary != "" {
		t.Errorf("summary should be empty, got %q", rows[0].Summary)
	}
}

func TestHandle_SummarizerFailureStillLogsRow(t *testing.T) {
	store := transcript.NewStore()
	store.Append("CA3", "some words were said")
	sum := &fakeSummarizer{err: errors.New("model offline")}
	sink := &memSink{}
	h := NewHandler(store, sum, sink)

	err := h.Handle(context.Background(), StatusEvent{
		CallID: "CA3", Status: "completed", Duration: "7", To: "+1", From: "+2",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows := sink.all()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Summary != "" {
		t.Errorf("expected empty summary on failure, got %q", rows[0].Summary)
	}
}

func TestHandle_NonFinalEventIsDropped(t *testing.T) {
	store := transcript.NewStore()
	store.Append("CA4", "words in flight")
	sum := &fakeSummarizer{}
	sink := &memSink{}
	h := NewHandler(store, sum, sink)

	for _, status := range []string{"initiated", "ringing", "answered", "in-progress"} {
		if err := h.Handle(context.Background(), StatusEvent{CallID: "CA4", Status: status}); err != nil {
			t.Fatalf("handle %s: %v", status, err)
		}
	}
	if len(sink.all()) != 0 {
		t.Fatalf("non-final events must not produce rows")
	}
	// Progress reads must not consume the transcript the final event needs.
	if store.Peek("CA4") != "words in flight" {
		t.Fatalf("non-final events evicted the transcript")
	}
	if sum.callCount() != 0 {
		t.Fatalf("summarizer ran before the call ended")
	}
}

func TestHandle_SinkErrorSurfaces(t *testing.T) {
	store := transcript.NewStore()
	sink := &memSink{err: errors.New("disk full")}
	h := NewHandler(store, &fakeSummarizer{}, sink)

	err := h.Handle(context.Background(), StatusEvent{CallID: "CA5", Status: "failed"})
	if err == nil {
		t.Fatalf("expected sink error to surface")
	}
}
