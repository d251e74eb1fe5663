package pipeline

// Frame is one unit of media or text flowing through a stage chain.
type Frame interface{ frame() }

// AudioChunk carries raw transport audio (mu-law bytes for the telephony leg).
type AudioChunk struct {
	Samples    []byte
	SampleRate int
	Channels   int
}

// RecognizedText is an ASR result. IsFinal marks the end of an utterance.
type RecognizedText struct {
	Text    string
	IsFinal bool
}

// GeneratedText is an assistant reply produced by the generation stage.
type GeneratedText struct {
	Text string
}

// SynthesizedAudio carries synthesized speech bytes ready for the transport.
type SynthesizedAudio struct {
	Samples []byte
}

// ControlKind enumerates pipeline control signals.
type ControlKind int

const (
	ControlStart ControlKind = iota
	ControlUserStartedSpeaking
	ControlUserStoppedSpeaking
	ControlInterrupt
	ControlEndOfCall
)

func (k ControlKind) String() string {
	switch k {
	case ControlStart:
		return "start"
	case ControlUserStartedSpeaking:
		return "user-started-speaking"
	case ControlUserStoppedSpeaking:
		return "user-stopped-speaking"
	case ControlInterrupt:
		return "interrupt"
	case ControlEndOfCall:
		return "end-of-call"
	}
	return "unknown"
}

// ControlSignal steers turn-taking and lifecycle.
type ControlSignal struct {
	Kind ControlKind
}

func (AudioChunk) frame()       {}
func (RecognizedText) frame()   {}
func (GeneratedText) frame()    {}
func (SynthesizedAudio) frame() {}
func (ControlSignal) frame()    {}

// isMedia reports whether a frame may be dropped under buffer pressure.
// Control and text frames are never dropped.
func isMedia(f Frame) bool {
	switch f.(type) {
	case AudioChunk, SynthesizedAudio:
		return true
	}
	return false
}
