package record

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chadiek/voicebot/internal/audio"
)

// Storage abstracts artifact upload (e.g. Supabase bucket).
type Storage interface {
	Upload(objectKey string, contentType string, body []byte) error
}

// Recorder accumulates both directions of a call as time-aligned PCM and
// flushes a single stereo WAV on session end. Channel 0 is the caller,
// channel 1 is the bot. Gaps are silence-filled so playback stays aligned
// with wall-clock time.
type Recorder struct {
	sampleRate int
	dir        string
	storage    Storage

	mu      sync.Mutex
	started bool
	t0      time.Time
	caller  []int16
	bot     []int16

	now func() time.Time
}

// NewRecorder creates a recorder writing WAV files into dir. storage may be
// nil when uploads are disabled.
func NewRecorder(sampleRate int, dir string, storage Storage) *Recorder {
	if sampleRate == 0 {
		sampleRate = 8000
	}
	return &Recorder{sampleRate: sampleRate, dir: dir, storage: storage, now: time.Now}
}

// Start begins the recording timeline. Samples written before Start are
// dropped.
func (r *Recorder) Start() {
	r.mu.Lock()
	r.started = true
	r.t0 = r.now()
	r.mu.Unlock()
}

// WriteCaller appends inbound mu-law audio at the current timeline position.
func (r *Recorder) WriteCaller(mulaw []byte) { r.write(&r.caller, mulaw) }

// WriteBot appends outbound mu-law audio at the current timeline position.
func (r *Recorder) WriteBot(mulaw []byte) { r.write(&r.bot, mulaw) }

func (r *Recorder) write(ch *[]int16, mulaw []byte) {
	if len(mulaw) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	// Silence-fill up to the wall-clock position before appending.
	pos := int(r.now().Sub(r.t0).Seconds() * float64(r.sampleRate))
	if gap := pos - len(*ch) - len(mulaw); gap > 0 {
		*ch = append(*ch, make([]int16, gap)...)
	}
	*ch = append(*ch, audio.DecodeMuLawBuf(mulaw)...)
}

// Flush finalizes the recording and writes one stereo WAV named after the
// call identifier. Returns the written path, or "" when no audio was
// captured (not an error). The artifact is uploaded when storage is set.
func (r *Recorder) Flush(callID string) (string, error) {
	r.mu.Lock()
	caller, bot := r.caller, r.bot
	r.caller, r.bot = nil, nil
	r.started = false
	r.mu.Unlock()

	if len(caller) == 0 && len(bot) == 0 {
		log.Printf("recorder: no audio captured for %s", callID)
		return "", nil
	}

	// Pad the shorter channel so both cover the full duration.
	n := len(caller)
	if len(bot) > n {
		n = len(bot)
	}
	interleaved := make([]int16, 0, n*2)
	for i := 0; i < n; i++ {
		var c, b int16
		if i < len(caller) {
			c = caller[i]
		}
		if i < len(bot) {
			b = bot[i]
		}
		interleaved = append(interleaved, c, b)
	}

	wav := audio.EncodeWAV(interleaved, r.sampleRate, 2)
	name := fmt.Sprintf("%s_recording_%s.wav", callID, r.now().Format("20060102_150405"))
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("write recording: %w", err)
	}
	log.Printf("recorder: merged audio saved to %s", path)

	if r.storage != nil {
		if err := r.storage.Upload(name, "audio/wav", wav); err != nil {
			log.Printf("recorder: upload %s failed: %v", name, err)
		}
	}
	return path, nil
}
