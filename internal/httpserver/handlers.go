package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/chadiek/voicebot/internal/agent"
	"github.com/chadiek/voicebot/internal/completion"
	"github.com/chadiek/voicebot/internal/dialer"
	"github.com/chadiek/voicebot/internal/telephony"
)

// CallSession is the lifecycle surface the media-stream endpoint drives.
type CallSession interface {
	Start(ctx context.Context) error
	FeedAudio(mulaw []byte)
	Close()
}

// SessionFactory builds a session for one answered call. endCall hangs the
// call up when the session decides the conversation is over.
type SessionFactory func(callID string, transport agent.Transport, endCall func()) (CallSession, error)

// Handlers holds the HTTP surface: carrier webhooks, the media-stream
// websocket, and the dial batch endpoint.
type Handlers struct {
	Validator  *telephony.Validator
	Dialer     *dialer.Dialer
	Completion *completion.Handler
	NewSession SessionFactory
	BaseURL    string

	upgrader websocket.Upgrader
}

func NewHandlers(v *telephony.Validator, d *dialer.Dialer, comp *completion.Handler, factory SessionFactory, baseURL string) *Handlers {
	return &Handlers{
		Validator:  v,
		Dialer:     d,
		Completion: comp,
		NewSession: factory,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The carrier connects from its own origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/twilio/voice", h.voice, h.Validator.Middleware)
	e.POST("/twilio/call-status", h.callStatus, h.Validator.Middleware)
	e.GET("/twilio/media-stream", h.mediaStream)
	e.POST("/dial", h.dial)
}

// voice answers the carrier's webhook for a call and connects its audio to
// the media-stream websocket.
func (h *Handlers) voice(c echo.Context) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}
	log.Printf("voice webhook: CallSid=%s from=%s to=%s", params["CallSid"], params["From"], params["To"])

	wsURL := strings.Replace(h.BaseURL, "http", "ws", 1) + "/twilio/media-stream"
	response, err := telephony.AnswerTwiML(wsURL)
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

// callStatus receives call lifecycle events. Post-processing can block on
// summarization, so it runs off the webhook's request cycle.
func (h *Handlers) callStatus(c echo.Context) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}

	ev := completion.StatusEvent{
		CallID:   params["CallSid"],
		Status:   params["CallStatus"],
		Duration: params["CallDuration"],
		To:       params["To"],
		From:     params["From"],
	}
	if ts, err := time.Parse(time.RFC1123Z, params["Timestamp"]); err == nil {
		ev.StartedAt = ts
	}

	go func() {
		if err := h.Completion.Handle(context.Background(), ev); err != nil {
			log.Printf("call %s post-processing failed: %v", ev.CallID, err)
		}
	}()
	return c.String(http.StatusOK, "OK")
}

type dialRequest struct {
	Targets []string `json:"targets"`
}

type dialResponse struct {
	Results []dialResult `json:"results"`
}

type dialResult struct {
	Target  string `json:"target"`
	Source  string `json:"source"`
	CallSid string `json:"call_sid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// dial places a batch of outbound calls and reports per-target outcomes.
func (h *Handlers) dial(c echo.Context) error {
	var req dialRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid dial request")
	}
	if len(req.Targets) == 0 {
		return c.String(http.StatusBadRequest, "no targets")
	}

	results := h.Dialer.Dial(c.Request().Context(), req.Targets)
	resp := dialResponse{Results: make([]dialResult, 0, len(results))}
	for _, r := range results {
		dr := dialResult{Target: r.Target, Source: r.Source, CallSid: r.CallID}
		if r.Err != nil {
			dr.Error = r.Err.Error()
		}
		resp.Results = append(resp.Results, dr)
	}
	return c.JSON(http.StatusOK, resp)
}

// mediaStream owns one call's websocket: the start event creates the
// session, media events feed it, and stop (or any read error) tears it down.
func (h *Handlers) mediaStream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ms := telephony.NewMediaStream(conn)
	defer ms.Close()

	var sess CallSession
	defer func() {
		if sess != nil {
			sess.Close()
		}
	}()

	for {
		ev, err := ms.ReadEvent()
		if err != nil {
			return nil
		}
		switch ev.Kind {
		case telephony.EventConnected:
			log.Printf("media stream connected")
		case telephony.EventStart:
			callID := ev.CallSid
			if callID == "" {
				callID = ev.StreamSid
			}
			log.Printf("media stream started: call=%s stream=%s", callID, ev.StreamSid)
			sess, err = h.NewSession(callID, ms, func() { _ = ms.Close() })
			if err != nil {
				log.Printf("session setup failed for %s: %v", callID, err)
				return nil
			}
			if err := sess.Start(c.Request().Context()); err != nil {
				log.Printf("session start failed for %s: %v", callID, err)
				return nil
			}
		case telephony.EventMedia:
			if sess != nil {
				sess.FeedAudio(ev.Audio)
			}
		case telephony.EventStop:
			log.Printf("media stream stopped: %s", ev.StreamSid)
			return nil
		}
	}
}
