package turn

import (
	"strings"
	"sync"
	"time"
)

// State of the conversation turn machine.
type State int

const (
	Idle State = iota
	UserSpeaking
	UserSilencePending
	BotGenerating
	BotSpeaking
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UserSpeaking:
		return "user-speaking"
	case UserSilencePending:
		return "user-silence-pending"
	case BotGenerating:
		return "bot-generating"
	case BotSpeaking:
		return "bot-speaking"
	case Interrupted:
		return "interrupted"
	}
	return "unknown"
}

// Config holds turn-taking thresholds.
type Config struct {
	// SilenceDebounce is how long the user must stay silent after
	// voice-activity-end before the utterance is considered complete.
	SilenceDebounce time.Duration
	// AllowInterruptions enables barge-in while the bot is speaking.
	AllowInterruptions bool
}

// DefaultConfig mirrors a conservative telephony profile.
func DefaultConfig() Config {
	return Config{SilenceDebounce: 700 * time.Millisecond, AllowInterruptions: true}
}

// Events are the controller's outbound edges. Callbacks run off the caller's
// goroutine; implementations must be safe for that.
type Events struct {
	// OnUtterance fires when the debounce window elapses with accumulated
	// recognized text: the user's turn is complete and a reply should be
	// generated.
	OnUtterance func(text string)
	// OnInterrupt fires when the user barges in while the bot is speaking.
	OnInterrupt func()
}

// Controller decides when the user has finished an utterance and when bot
// output must be cancelled. It is driven by voice-activity and recognition
// signals and by the session reporting generation/synthesis progress.
type Controller struct {
	cfg Config
	ev  Events

	mu       sync.Mutex
	state    State
	pending  []string
	debounce *time.Timer
}

func NewController(cfg Config, ev Events) *Controller {
	if cfg.SilenceDebounce <= 0 {
		cfg.SilenceDebounce = DefaultConfig().SilenceDebounce
	}
	return &Controller{cfg: cfg, ev: ev, state: Idle}
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// VoiceStart reports voice-activity-start from the recognizer.
func (c *Controller) VoiceStart() {
	c.mu.Lock()
	switch c.state {
	case Idle, UserSilencePending:
		c.stopDebounceLocked()
		c.state = UserSpeaking
		c.mu.Unlock()
	case BotSpeaking:
		if !c.cfg.AllowInterruptions {
			c.mu.Unlock()
			return
		}
		c.state = Interrupted
		fire := c.ev.OnInterrupt
		c.mu.Unlock()
		if fire != nil {
			fire()
		}
		// Interruption immediately hands the floor back to the user.
		c.mu.Lock()
		c.state = UserSpeaking
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

// VoiceStop reports voice-activity-end; the debounce window starts.
func (c *Controller) VoiceStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != UserSpeaking {
		return
	}
	c.state = UserSilencePending
	c.startDebounceLocked()
}

// Recognized accumulates recognized text for the in-flight utterance. Final
// segments arriving during the debounce window extend the utterance and reset
// the timer (late ASR output must not be cut off).
func (c *Controller) Recognized(text string, isFinal bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !isFinal {
		return
	}
	c.pending = append(c.pending, text)
	if c.state == UserSilencePending {
		c.startDebounceLocked()
	}
}

// GenerationStarted is reported by the session once a reply request is issued.
func (c *Controller) GenerationStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == UserSilencePending || c.state == Idle {
		c.state = BotGenerating
	}
}

// SynthesisStarted is reported once synthesized audio begins flowing.
func (c *Controller) SynthesisStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == BotGenerating {
		c.state = BotSpeaking
	}
}

// BotFinished is reported on normal completion of the spoken reply.
func (c *Controller) BotFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == BotSpeaking || c.state == BotGenerating {
		c.state = Idle
	}
}

// Reset clears any pending utterance and stops timers.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopDebounceLocked()
	c.pending = nil
	c.state = Idle
}

func (c *Controller) startDebounceLocked() {
	c.stopDebounceLocked()
	c.debounce = time.AfterFunc(c.cfg.SilenceDebounce, c.debounceElapsed)
}

func (c *Controller) stopDebounceLocked() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Controller) debounceElapsed() {
	c.mu.Lock()
	if c.state != UserSilencePending {
		c.mu.Unlock()
		return
	}
	utterance := strings.TrimSpace(strings.Join(c.pending, " "))
	c.pending = nil
	if utterance == "" {
		c.state = Idle
		c.mu.Unlock()
		return
	}
	c.state = BotGenerating
	fire := c.ev.OnUtterance
	c.mu.Unlock()
	if fire != nil {
		fire(utterance)
	}
}
