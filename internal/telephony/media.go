package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
)

// Twilio Media Streams framing: every websocket message is a JSON envelope
// tagged by event. Inbound audio arrives as base64 mu-law in media events;
// outbound audio goes back the same way, addressed by streamSid.

// EventKind classifies an inbound media-stream message.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventConnected
	EventStart
	EventMedia
	EventStop
)

// Event is one decoded inbound message.
type Event struct {
	Kind      EventKind
	StreamSid string
	CallSid   string
	Audio     []byte // decoded mu-law, media events only
}

type mediaEnvelope struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// ParseEvent decodes one inbound websocket message.
func ParseEvent(data []byte) (Event, error) {
	var env mediaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode media-stream message: %w", err)
	}
	switch env.Event {
	case "connected":
		return Event{Kind: EventConnected}, nil
	case "start":
		if env.Start == nil {
			return Event{}, fmt.Errorf("start event without start payload")
		}
		return Event{Kind: EventStart, StreamSid: env.Start.StreamSid, CallSid: env.Start.CallSid}, nil
	case "media":
		if env.Media == nil {
			return Event{}, fmt.Errorf("media event without media payload")
		}
		audio, err := base64.StdEncoding.DecodeString(env.Media.Payload)
		if err != nil {
			return Event{}, fmt.Errorf("decode media payload: %w", err)
		}
		return Event{Kind: EventMedia, StreamSid: env.StreamSid, Audio: audio}, nil
	case "stop":
		return Event{Kind: EventStop, StreamSid: env.StreamSid}, nil
	}
	return Event{Kind: EventUnknown}, nil
}

// Conn is the websocket surface MediaStream needs; *websocket.Conn satisfies
// it with the message type pinned to text frames by the caller.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage

// MediaStream wraps one media-stream websocket. Reads happen on a single
// goroutine; writes are serialized internally so the session and barge-in
// paths can share the connection.
type MediaStream struct {
	conn Conn

	wmu       sync.Mutex
	mu        sync.Mutex
	streamSid string
}

func NewMediaStream(conn Conn) *MediaStream {
	return &MediaStream{conn: conn}
}

// ReadEvent blocks for the next inbound message. A start event binds the
// stream SID used to address all subsequent writes.
func (m *MediaStream) ReadEvent() (Event, error) {
	_, data, err := m.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	ev, err := ParseEvent(data)
	if err != nil {
		return Event{}, err
	}
	if ev.Kind == EventStart {
		m.mu.Lock()
		m.streamSid = ev.StreamSid
		m.mu.Unlock()
	}
	return ev, nil
}

// StreamSid returns the SID bound by the start event, or "".
func (m *MediaStream) StreamSid() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamSid
}

// Send writes one outbound mu-law chunk.
func (m *MediaStream) Send(mulaw []byte) error {
	sid := m.StreamSid()
	if sid == "" {
		return fmt.Errorf("media stream not started")
	}
	env := mediaEnvelope{
		Event:     "media",
		StreamSid: sid,
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	}
	return m.write(env)
}

// Clear asks the carrier to drop any buffered outbound audio. Used on
// barge-in so queued speech stops immediately.
func (m *MediaStream) Clear() error {
	sid := m.StreamSid()
	if sid == "" {
		return fmt.Errorf("media stream not started")
	}
	return m.write(mediaEnvelope{Event: "clear", StreamSid: sid})
}

func (m *MediaStream) Close() error {
	return m.conn.Close()
}

func (m *MediaStream) write(env mediaEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	m.wmu.Lock()
	defer m.wmu.Unlock()
	return m.conn.WriteMessage(textMessage, data)
}
