package stt

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chadiek/voicebot/internal/pipeline"
)

// AssemblyAIService streams telephony audio (8kHz mu-law) to the AssemblyAI
// realtime endpoint and emits recognized-text frames. Partial transcripts are
// emitted with IsFinal=false; an end-of-turn transcript is emitted once with
// IsFinal=true.
type AssemblyAIService struct {
	apiKey  string
	baseURL string

	results   chan pipeline.RecognizedText
	audioData chan []byte
	stopCh    chan struct{}

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
	Formatted  bool   `json:"turn_is_formatted"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewAssemblyAIService creates a realtime transcription client.
func NewAssemblyAIService(apiKey string) *AssemblyAIService {
	return &AssemblyAIService{
		apiKey:    apiKey,
		baseURL:   "wss://streaming.assemblyai.com/v3/ws",
		results:   make(chan pipeline.RecognizedText, 100),
		audioData: make(chan []byte, 1000),
		stopCh:    make(chan struct{}),
	}
}

// Results returns the channel of recognized-text frames.
func (s *AssemblyAIService) Results() <-chan pipeline.RecognizedText { return s.results }

// Connect establishes the streaming WebSocket session.
func (s *AssemblyAIService) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("assemblyai api key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "8000")
	params.Set("encoding", "pcm_mulaw")
	params.Set("format_turns", "false")
	wsURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	keyPreview := s.apiKey
	if len(keyPreview) > 8 {
		keyPreview = keyPreview[:8]
	}
	log.Printf("stt: connecting to AssemblyAI (key %s...)", keyPreview)

	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("stt: AssemblyAI connection failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("connect to assemblyai: %w", err)
	}

	s.conn = conn
	s.connected = true
	go s.readLoop()
	go s.writeLoop()
	return nil
}

// SendAudio queues a mu-law chunk for delivery. Drops under backpressure so a
// slow ASR link never stalls the media loop.
func (s *AssemblyAIService) SendAudio(mulaw []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("not connected to assemblyai")
	}
	select {
	case s.audioData <- mulaw:
	default:
		log.Printf("stt: audio buffer full, dropping packet")
	}
	return nil
}

// Close terminates the session and closes the result channel.
func (s *AssemblyAIService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	close(s.stopCh)
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	close(s.audioData)
	close(s.results)
	log.Printf("stt: AssemblyAI connection closed")
	return nil
}

func (s *AssemblyAIService) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("stt: recovered in readLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				log.Printf("stt: read error: %v", err)
			}
			return
		}
		s.processMessage(message)
	}
}

func (s *AssemblyAIService) processMessage(message []byte) {
	msgType, err := peekType(message)
	if err != nil {
		log.Printf("stt: %v", err)
		return
	}
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := unmarshal(message, &msg); err != nil {
			log.Printf("stt: begin: %v", err)
			return
		}
		log.Printf("stt: session began id=%s expires=%s", msg.ID, time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339))
	case "Turn":
		var msg turnMessage
		if err := unmarshal(message, &msg); err != nil {
			log.Printf("stt: turn: %v", err)
			return
		}
		if msg.Transcript == "" {
			return
		}
		s.deliver(pipeline.RecognizedText{Text: msg.Transcript, IsFinal: msg.EndOfTurn})
	case "Termination":
		var msg terminationMessage
		if err := unmarshal(message, &msg); err != nil {
			log.Printf("stt: termination: %v", err)
			return
		}
		log.Printf("stt: session terminated audio=%.2fs session=%.2fs", msg.AudioDurationSeconds, msg.SessionDurationSeconds)
	case "Error":
		var msg errorMessage
		if err := unmarshal(message, &msg); err != nil {
			log.Printf("stt: error msg: %v", err)
			return
		}
		log.Printf("stt: AssemblyAI error: %s", msg.Error)
	default:
		log.Printf("stt: unknown message type %q", msgType)
	}
}

// deliver pushes a result without blocking the read loop. Partials may be
// dropped under pressure; finals are delivered with a bounded wait so the
// last words of an utterance are not lost.
func (s *AssemblyAIService) deliver(rt pipeline.RecognizedText) {
	if !rt.IsFinal {
		select {
		case s.results <- rt:
		default:
		}
		return
	}
	select {
	case <-s.stopCh:
	case s.results <- rt:
	case <-time.After(200 * time.Millisecond):
		log.Printf("stt: timed out delivering final transcript")
	}
}

func (s *AssemblyAIService) writeLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("stt: recovered in writeLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case chunk, ok := <-s.audioData:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				log.Printf("stt: write error: %v", err)
				return
			}
		}
	}
}
