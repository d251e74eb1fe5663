package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Outcome is the typed result of a generation step. EndSession is set when
// the model invoked the end-call tool; the session winds down after speaking
// any accompanying reply.
type Outcome struct {
	Reply      string
	EndSession bool
}

const endCallTool = "terminate_call"

type CerebrasClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	Endpoint   string
}

type toolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type toolParam struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type chatCompletionsRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Tools    []toolParam `json:"tools,omitempty"`
	Stream   bool        `json:"stream,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Function toolFunction `json:"function"`
}

type responseMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type chatChoice struct {
	Index        int             `json:"index"`
	FinishReason string          `json:"finish_reason"`
	Message      responseMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		APIKey:     apiKey,
		Model:      model,
		Endpoint:   "https://api.cerebras.ai/v1/chat/completions",
	}
}

// Generate requests one assistant reply for the dialogue so far. The end-call
// tool is always advertised; a tool invocation surfaces as Outcome.EndSession
// rather than an out-of-band callback.
func (c *CerebrasClient) Generate(ctx context.Context, msgs []Message) (Outcome, error) {
	tools := []toolParam{{
		Type:     "function",
		Function: toolFunction{Name: endCallTool, Description: "End the phone call"},
	}}
	resp, err := c.complete(ctx, msgs, tools)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Reply: strings.TrimSpace(resp.Message.Content)}
	for _, tc := range resp.Message.ToolCalls {
		if tc.Function.Name == endCallTool {
			out.EndSession = true
		}
	}
	return out, nil
}

// Summarize produces a short natural-language summary of a call transcript.
func (c *CerebrasClient) Summarize(ctx context.Context, transcript string) (string, error) {
	msgs := []Message{
		{Role: "system", Content: "Summarize the following phone call transcript in one or two short sentences. Mention the caller's intent and the outcome."},
		{Role: "user", Content: transcript},
	}
	resp, err := c.complete(ctx, msgs, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

func (c *CerebrasClient) complete(ctx context.Context, msgs []Message, tools []toolParam) (*chatChoice, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("cerebras api key missing")
	}
	reqBody, _ := json.Marshal(chatCompletionsRequest{Model: c.Model, Messages: msgs, Tools: tools})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cerebras error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, err
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("cerebras: empty choices")
	}
	return &cr.Choices[0], nil
}
