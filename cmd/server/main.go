package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chadiek/voicebot/internal/agent"
	"github.com/chadiek/voicebot/internal/calllog"
	"github.com/chadiek/voicebot/internal/completion"
	"github.com/chadiek/voicebot/internal/config"
	"github.com/chadiek/voicebot/internal/dialer"
	"github.com/chadiek/voicebot/internal/httpserver"
	"github.com/chadiek/voicebot/internal/llm"
	"github.com/chadiek/voicebot/internal/record"
	"github.com/chadiek/voicebot/internal/storage"
	"github.com/chadiek/voicebot/internal/stt"
	"github.com/chadiek/voicebot/internal/telephony"
	"github.com/chadiek/voicebot/internal/transcript"
	"github.com/chadiek/voicebot/internal/tts"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	testMode := flag.Bool("test", false, "append tail silence after replies for automated capture")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var recStorage record.Storage
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		sb, err := storage.New(storage.Config{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Fatalf("supabase: %v", err)
		}
		recStorage = sb
	}

	transcripts := transcript.NewStore()
	sink := calllog.NewCSVSink(cfg.CallLogPath)
	brain := llm.NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID)
	comp := completion.NewHandler(transcripts, brain, sink)

	caller := telephony.NewCaller(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.PublicBaseURL)
	batch, err := dialer.New(caller, dialer.Config{
		Sources:     cfg.SourceNumbers,
		Concurrency: cfg.DialConcurrency,
	})
	if err != nil {
		log.Fatalf("dialer: %v", err)
	}

	factory := func(callID string, transport agent.Transport, endCall func()) (httpserver.CallSession, error) {
		var synth agent.Synthesizer
		if cfg.TTSProvider == "elevenlabs" {
			synth = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		} else {
			synth = tts.NewDeepgramClient(cfg.DeepgramKey, "")
		}
		sess := agent.NewSession(
			agent.Config{
				CallID:             callID,
				SystemPrompt:       cfg.SystemPrompt,
				SilenceDebounce:    cfg.SilenceDebounce,
				AllowInterruptions: cfg.AllowInterruptions,
				Testing:            *testMode,
			},
			agent.Deps{
				Transcriber:    stt.NewAssemblyAIService(cfg.AssemblyAIKey),
				Generator:      brain,
				Synthesizer:    synth,
				Transport:      transport,
				Recorder:       record.NewRecorder(8000, cfg.RecordingsDir, recStorage),
				Store:          transcripts,
				OnEndRequested: endCall,
			},
		)
		return sess, nil
	}

	e := httpserver.New()
	handlers := httpserver.NewHandlers(
		&telephony.Validator{AuthToken: cfg.TwilioAuthToken},
		batch, comp, factory, cfg.PublicBaseURL,
	)
	handlers.Register(e)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
