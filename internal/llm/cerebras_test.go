package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCerebras_NoKey(t *testing.T) {
	c := NewCerebrasClient("", "model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Generate(ctx, []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error with missing key")
	}
	if _, err := c.Summarize(ctx, "some transcript"); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func newTestClient(srv *httptest.Server) *CerebrasClient {
	c := NewCerebrasClient("key", "model")
	c.Endpoint = srv.URL
	c.HTTPClient = &http.Client{Timeout: time.Second}
	return c
}

func TestCerebras_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := newTestClient(srv)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.Generate(ctx, []Message{{Role: "user", Content: "hi"}}); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestCerebras_GenerateReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hello there.  "}}]}`))
	}))
	defer srv.Close()
	c := newTestClient(srv)
	out, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Reply != "Hello there." {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
	if out.EndSession {
		t.Fatalf("did not expect end-session")
	}
}

func TestCerebras_EndCallToolSetsEndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Goodbye!","tool_calls":[{"id":"t1","function":{"name":"terminate_call"}}]}}]}`))
	}))
	defer srv.Close()
	c := newTestClient(srv)
	out, err := c.Generate(context.Background(), []Message{{Role: "user", Content: "bye"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !out.EndSession {
		t.Fatalf("expected end-session from tool call")
	}
	if out.Reply != "Goodbye!" {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
}

func TestCerebras_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Caller asked about opening hours."}}]}`))
	}))
	defer srv.Close()
	c := newTestClient(srv)
	got, err := c.Summarize(context.Background(), "[USER] what time do you open")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "Caller asked about opening hours." {
		t.Fatalf("unexpected summary %q", got)
	}
}
