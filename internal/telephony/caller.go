package telephony

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

// Caller places outbound calls through the Twilio REST API. Each call is
// pointed at this service's voice webhook for TwiML and at the call-status
// webhook for lifecycle events.
type Caller struct {
	client  *twilio.RestClient
	baseURL string
}

// NewCaller builds a caller for the given account. baseURL is the public
// HTTPS origin of this service, without a trailing slash.
func NewCaller(accountSID, authToken, baseURL string) *Caller {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Caller{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Place starts one outbound call from the given source number and returns
// the call SID.
func (c *Caller) Place(ctx context.Context, to, from string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(c.baseURL + "/twilio/voice")
	params.SetMethod("POST")
	params.SetStatusCallback(c.baseURL + "/twilio/call-status")
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call to %s: %w", to, err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("create call to %s: no sid in response", to)
	}
	return *resp.Sid, nil
}

// AnswerTwiML renders the voice-webhook response: connect the call's audio
// to our media-stream websocket and hold the line open.
func AnswerTwiML(wsURL string) (string, error) {
	stream := &twiml.VoiceStream{Url: wsURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	pause := &twiml.VoicePause{Length: "40"}
	return twiml.Voice([]twiml.Element{connect, pause})
}
