package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestElevenLabs_MissingCredentials(t *testing.T) {
	e := NewElevenLabsClient("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, errCh := e.StreamMulaw8k(ctx, "hello")
	if err := <-errCh; err == nil {
		t.Fatalf("expected error with missing credentials")
	}
}

func TestElevenLabs_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("output_format"); got != "ulaw_8000" {
			t.Errorf("unexpected output_format %q", got)
		}
		_, _ = w.Write([]byte{0xFF, 0xFE, 0xFD})
	}))
	defer srv.Close()

	e := NewElevenLabsClient("key", "voice")
	e.BaseURL = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	audioCh, errCh := e.StreamMulaw8k(ctx, "hello")

	var total int
	for b := range audioCh {
		total += len(b)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 audio bytes, got %d", total)
	}
}

func TestElevenLabs_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	e := NewElevenLabsClient("key", "voice")
	e.BaseURL = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	audioCh, errCh := e.StreamMulaw8k(ctx, "hello")
	for range audioCh {
	}
	if err := <-errCh; err == nil {
		t.Fatalf("expected error on 500")
	}
}
