package completion

import (
	"context"
	"log"
	"time"

	"github.com/chadiek/voicebot/internal/calllog"
)

// StatusEvent is one provider status callback for an outbound call.
type StatusEvent struct {
	CallID    string
	Status    string // initiated, ringing, answered, in-progress, completed, busy, failed, no-answer, canceled
	Duration  string // seconds, only present on completed
	To        string
	From      string
	StartedAt time.Time
}

// Final reports whether the event terminates the call's lifecycle.
func (e StatusEvent) Final() bool {
	switch e.Status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

// Summarizer condenses a call transcript into one line.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// TranscriptTaker reads the transcript accumulated for a call. Take evicts;
// Peek does not and serves the non-terminal status path.
type TranscriptTaker interface {
	Take(key string) string
	Peek(key string) string
}

// Handler turns final status events into durable call-log rows. Non-final
// events are logged and dropped; final events always produce exactly one row,
// with a summary when a transcript exists and summarization succeeds.
type Handler struct {
	store      TranscriptTaker
	summarizer Summarizer
	sink       calllog.Sink
	timeout    time.Duration
}

func NewHandler(store TranscriptTaker, summarizer Summarizer, sink calllog.Sink) *Handler {
	return &Handler{store: store, summarizer: summarizer, sink: sink, timeout: 30 * time.Second}
}

// Handle processes one status event. The returned error reflects only the
// call-log write: a summarizer failure degrades to an empty summary rather
// than losing the row.
func (h *Handler) Handle(ctx context.Context, ev StatusEvent) error {
	if !ev.Final() {
		log.Printf("call %s status: %s (transcript so far: %d chars)",
			ev.CallID, ev.Status, len(h.store.Peek(ev.CallID)))
		return nil
	}

	summary := ""
	if transcript := h.store.Take(ev.CallID); transcript != "" {
		sctx, cancel := context.WithTimeout(ctx, h.timeout)
		s, err := h.summarizer.Summarize(sctx, transcript)
		cancel()
		if err != nil {
			log.Printf("call %s summarization failed, logging without summary: %v", ev.CallID, err)
		} else {
			summary = s
		}
	}

	started := ev.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	rec := calllog.Record{
		TimestampStart:   started.UTC().Format(time.RFC3339),
		DurationOrStatus: durationOrStatus(ev),
		Summary:          summary,
		TargetNumber:     ev.To,
		SourceNumber:     ev.From,
	}
	if err := h.sink.Write(rec); err != nil {
		return err
	}
	log.Printf("call %s logged: %s", ev.CallID, rec.DurationOrStatus)
	return nil
}

// durationOrStatus records the call duration in seconds for completed calls
// and the terminal status for everything else.
func durationOrStatus(ev StatusEvent) string {
	if ev.Status == "completed" && ev.Duration != "" {
		return ev.Duration
	}
	return ev.Status
}
