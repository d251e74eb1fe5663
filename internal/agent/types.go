package agent

import (
	"context"

	"github.com/chadiek/voicebot/internal/llm"
	"github.com/chadiek/voicebot/internal/pipeline"
)

// Transcriber is the minimal interface for realtime STT over the telephony
// leg. It accepts 8kHz mu-law buffers and emits recognized-text frames.
type Transcriber interface {
	Connect() error
	SendAudio(mulaw []byte) error
	Results() <-chan pipeline.RecognizedText
	Close() error
}

// Generator produces one assistant reply for the dialogue so far. The
// outcome is typed: a reply to speak, an end-session decision, or both.
type Generator interface {
	Generate(ctx context.Context, msgs []llm.Message) (llm.Outcome, error)
}

// Synthesizer streams 8kHz mu-law audio for the given text.
type Synthesizer interface {
	StreamMulaw8k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// Transport delivers synthesized audio to the caller. Clear drops any audio
// queued at the carrier so a barge-in feels instant.
type Transport interface {
	Send(mulaw []byte) error
	Clear() error
}

// TranscriptAppender receives finalized recognized utterances keyed by call.
type TranscriptAppender interface {
	Append(key, text string)
}

// Recorder accumulates both directions of call audio.
type Recorder interface {
	Start()
	WriteCaller(mulaw []byte)
	WriteBot(mulaw []byte)
	Flush(callID string) (string, error)
}
