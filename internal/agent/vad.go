package agent

import (
	"context"
	"time"

	"github.com/chadiek/voicebot/internal/audio"
	"github.com/chadiek/voicebot/internal/pipeline"
)

const (
	// voiceRMS is the energy threshold separating speech from line noise,
	// tuned conservatively for 8kHz telephony audio.
	voiceRMS = 250.0
	// voiceHangover is how long energy must stay below the threshold before
	// a stop signal is emitted; absorbs the gaps between words.
	voiceHangover = 300 * time.Millisecond
)

// vadStage watches inbound audio energy and injects user-started-speaking /
// user-stopped-speaking control signals ahead of the audio. Non-audio frames
// pass through untouched.
type vadStage struct {
	speaking  bool
	lastVoice time.Time
	now       func() time.Time
}

func newVADStage() *vadStage {
	return &vadStage{now: time.Now}
}

func (v *vadStage) Name() string { return "vad" }

func (v *vadStage) Process(_ context.Context, f pipeline.Frame, emit pipeline.Emit) {
	chunk, ok := f.(pipeline.AudioChunk)
	if !ok {
		emit(f)
		return
	}
	voiced := audio.RMS(audio.DecodeMuLawBuf(chunk.Samples)) >= voiceRMS
	now := v.now()
	if voiced {
		v.lastVoice = now
		if !v.speaking {
			v.speaking = true
			emit(pipeline.ControlSignal{Kind: pipeline.ControlUserStartedSpeaking})
		}
	} else if v.speaking && now.Sub(v.lastVoice) >= voiceHangover {
		v.speaking = false
		emit(pipeline.ControlSignal{Kind: pipeline.ControlUserStoppedSpeaking})
	}
	emit(f)
}

func (v *vadStage) Flush(_ context.Context, emit pipeline.Emit) {
	if v.speaking {
		v.speaking = false
		emit(pipeline.ControlSignal{Kind: pipeline.ControlUserStoppedSpeaking})
	}
}
