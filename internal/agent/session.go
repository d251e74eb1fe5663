package agent

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chadiek/voicebot/internal/llm"
	"github.com/chadiek/voicebot/internal/pipeline"
	"github.com/chadiek/voicebot/internal/turn"
)

const introDirective = "Please introduce yourself to the user."

// tailSilence is ~200ms of mu-law silence appended after a reply in testing
// mode so downstream capture sees a clean utterance boundary.
var tailSilence = func() []byte {
	b := make([]byte, 1600)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}()

// Config holds per-session settings.
type Config struct {
	CallID             string
	SystemPrompt       string
	SilenceDebounce    time.Duration
	AllowInterruptions bool
	Testing            bool
}

// Deps are the session's collaborators.
type Deps struct {
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
	Transport   Transport
	Recorder    Recorder
	Store       TranscriptAppender
	// OnEndRequested is invoked when the generator decides the call is over.
	OnEndRequested func()
}

// Session orchestrates one call: inbound audio flows through a stage chain
// (VAD -> recognition) into the turn controller; completed utterances drive
// generation and synthesis back out through the transport.
type Session struct {
	cfg  Config
	deps Deps

	ctrl   *turn.Controller
	chain  *pipeline.Chain
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	history     []llm.Message
	speaking    bool
	barged      bool
	speakCancel context.CancelFunc

	closeOnce sync.Once
}

// NewSession constructs a session; Start wires and launches it.
func NewSession(cfg Config, deps Deps) *Session {
	return &Session{cfg: cfg, deps: deps}
}

// Start connects the transcriber, builds the inbound stage chain, seeds the
// conversation, and speaks the greeting. The session stops when ctx is
// cancelled or Close is called.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.ctrl = turn.NewController(
		turn.Config{SilenceDebounce: s.cfg.SilenceDebounce, AllowInterruptions: s.cfg.AllowInterruptions},
		turn.Events{OnUtterance: s.handleUtterance, OnInterrupt: s.bargeIn},
	)

	if err := s.deps.Transcriber.Connect(); err != nil {
		return err
	}

	recognition := pipeline.StageFunc{StageName: "recognition", Fn: func(_ context.Context, f pipeline.Frame, emit pipeline.Emit) {
		if chunk, ok := f.(pipeline.AudioChunk); ok {
			_ = s.deps.Transcriber.SendAudio(chunk.Samples)
		}
		emit(f)
	}}
	// Finalized utterance fragments are mirrored into the shared transcript
	// store as they pass the recognition stage.
	tapped := pipeline.Observe(recognition, func(f pipeline.Frame) {
		if rt, ok := f.(pipeline.RecognizedText); ok && rt.IsFinal {
			s.deps.Store.Append(s.cfg.CallID, rt.Text)
		}
	})

	s.chain = pipeline.NewChain(s.ctx, s.dispatch, newVADStage(), tapped)

	// Recognition results re-enter the chain so middleware and the turn
	// controller observe them in stage order.
	go func() {
		for rt := range s.deps.Transcriber.Results() {
			if err := s.chain.Submit(rt); err != nil {
				return
			}
		}
	}()

	s.deps.Recorder.Start()

	s.mu.Lock()
	s.history = append(s.history,
		llm.Message{Role: "system", Content: s.cfg.SystemPrompt},
		llm.Message{Role: "system", Content: introDirective},
	)
	s.mu.Unlock()
	log.Printf("[%s] session started", s.cfg.CallID)

	// Kick off the conversation with the bot's introduction.
	go s.runTurn()
	return nil
}

// FeedAudio accepts one inbound mu-law chunk from the transport.
func (s *Session) FeedAudio(mulaw []byte) {
	if len(mulaw) == 0 {
		return
	}
	s.deps.Recorder.WriteCaller(mulaw)
	if err := s.chain.Submit(pipeline.AudioChunk{Samples: mulaw, SampleRate: 8000, Channels: 1}); err != nil {
		log.Printf("[%s] late audio rejected: %v", s.cfg.CallID, err)
	}
}

// dispatch is the chain sink: control and text frames drive the turn
// controller.
func (s *Session) dispatch(f pipeline.Frame) {
	switch fr := f.(type) {
	case pipeline.ControlSignal:
		switch fr.Kind {
		case pipeline.ControlUserStartedSpeaking:
			s.ctrl.VoiceStart()
		case pipeline.ControlUserStoppedSpeaking:
			s.ctrl.VoiceStop()
		}
	case pipeline.RecognizedText:
		s.ctrl.Recognized(fr.Text, fr.IsFinal)
	}
}

// handleUtterance runs when the debounce window closes a user turn.
func (s *Session) handleUtterance(text string) {
	log.Printf("[%s] heard(final): %s", s.cfg.CallID, text)
	s.mu.Lock()
	s.history = append(s.history, llm.Message{Role: "user", Content: text})
	s.mu.Unlock()
	s.runTurn()
}

// runTurn generates one assistant reply and speaks it. A failed generation
// degrades the turn, never the session.
func (s *Session) runTurn() {
	s.mu.Lock()
	msgs := make([]llm.Message, len(s.history))
	copy(msgs, s.history)
	s.mu.Unlock()

	s.ctrl.GenerationStarted()
	ctxLLM, cancel := context.WithTimeout(s.ctx, 20*time.Second)
	out, err := s.deps.Generator.Generate(ctxLLM, msgs)
	cancel()
	if err != nil {
		log.Printf("[%s] llm error: %v", s.cfg.CallID, err)
		s.ctrl.BotFinished()
		return
	}

	var spoken string
	var wasBarged bool
	if reply := strings.TrimSpace(out.Reply); reply != "" {
		spoken, wasBarged = s.speak(reply)
	}
	// Commit exactly what was spoken, exactly once. A reply cut off before
	// any audio left the transport is not part of the conversation.
	if spoken != "" {
		s.mu.Lock()
		s.history = append(s.history, llm.Message{Role: "assistant", Content: spoken})
		s.mu.Unlock()
	}
	s.ctrl.BotFinished()

	if out.EndSession && !wasBarged {
		log.Printf("[%s] generator requested end of session", s.cfg.CallID)
		if s.deps.OnEndRequested != nil {
			s.deps.OnEndRequested()
		}
	}
}

// speak streams the reply sentence by sentence and returns the text that was
// actually delivered before any barge-in.
func (s *Session) speak(reply string) (string, bool) {
	ctxTTS, cancelTTS := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.speaking = true
	s.speakCancel = cancelTTS
	s.barged = false
	s.mu.Unlock()

	firstAudio := false
	var spokenBuilder strings.Builder
	chunks := chunkReply(reply)
	for i, chunk := range chunks {
		if s.wasBarged() {
			break
		}
		audioCh, errCh := s.deps.Synthesizer.StreamMulaw8k(ctxTTS, chunk)
		openAudio, openErr := true, true
		for openAudio || openErr {
			select {
			case b, ok := <-audioCh:
				if !ok {
					openAudio = false
					continue
				}
				if len(b) == 0 {
					continue
				}
				if !firstAudio {
					firstAudio = true
					s.ctrl.SynthesisStarted()
				}
				if s.wasBarged() {
					continue
				}
				_ = s.deps.Transport.Send(b)
				s.deps.Recorder.WriteBot(b)
			case e, ok := <-errCh:
				if ok && e != nil {
					log.Printf("[%s] tts stream error: %v", s.cfg.CallID, e)
				}
				openErr = false
			case <-s.ctx.Done():
				openAudio, openErr = false, false
			}
		}
		if s.wasBarged() {
			break
		}
		spokenBuilder.WriteString(strings.TrimSpace(chunk))
		if i < len(chunks)-1 {
			spokenBuilder.WriteString(" ")
		}
	}

	s.mu.Lock()
	wasBarged := s.barged
	s.speaking = false
	s.speakCancel = nil
	s.barged = false
	s.mu.Unlock()
	cancelTTS()

	if !wasBarged && s.cfg.Testing && firstAudio {
		_ = s.deps.Transport.Send(tailSilence)
		s.deps.Recorder.WriteBot(tailSilence)
	}
	return strings.TrimSpace(spokenBuilder.String()), wasBarged
}

func (s *Session) wasBarged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.barged
}

// bargeIn cancels in-flight synthesis and drops queued audio, both locally
// and at the carrier.
func (s *Session) bargeIn() {
	s.mu.Lock()
	var cancel context.CancelFunc
	if s.speaking {
		s.barged = true
		cancel = s.speakCancel
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = s.deps.Transport.Clear()
	log.Printf("[%s] barge-in: outbound audio cancelled", s.cfg.CallID)
}

// History returns a copy of the conversation so far.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Close tears the session down: the chain drains, in-flight work is
// cancelled, and the recorder flushes its artifact. Safe to call more than
// once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.chain != nil {
			if err := s.chain.Submit(pipeline.ControlSignal{Kind: pipeline.ControlEndOfCall}); err == nil {
				select {
				case <-s.chain.Done():
				case <-time.After(2 * time.Second):
					s.chain.Close()
				}
			} else {
				s.chain.Close()
			}
		}
		if s.cancel != nil {
			s.cancel()
		}
		if s.ctrl != nil {
			s.ctrl.Reset()
		}
		_ = s.deps.Transcriber.Close()
		if _, err := s.deps.Recorder.Flush(s.cfg.CallID); err != nil {
			log.Printf("[%s] recorder flush: %v", s.cfg.CallID, err)
		}
		log.Printf("[%s] session closed", s.cfg.CallID)
	})
}

// chunkReply splits an assistant reply into sentence-like chunks so spoken
// text can be committed incrementally. Splits on '.', '?', '!' and newlines,
// retaining punctuation.
func chunkReply(reply string) []string {
	txt := strings.TrimSpace(reply)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			if chunk := strings.TrimSpace(b.String()); chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		case '\n', '\r':
			if chunk := strings.TrimSpace(b.String()); chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}
