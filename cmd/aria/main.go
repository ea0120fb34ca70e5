package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aria-voice/aria/internal/config"
	"github.com/aria-voice/aria/internal/httpapi"
	"github.com/aria-voice/aria/internal/memory"
	"github.com/aria-voice/aria/internal/observability"
	"github.com/aria-voice/aria/internal/session"
	"github.com/aria-voice/aria/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	var (
		asrProvider voice.ASRProvider
		llmProvider voice.LLMProvider
		ttsProvider voice.TTSProvider
	)

	tryLive := func(fatal bool) bool {
		if strings.TrimSpace(cfg.DeepgramAPIKey) == "" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			if fatal {
				log.Fatalf("VOICE_PROVIDER=live requires DEEPGRAM_API_KEY and OPENAI_API_KEY")
			}
			return false
		}
		openAI, err := voice.NewOpenAIProvider(voice.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			ChatModel:    cfg.LLMModel,
			MaxTokens:    cfg.LLMMaxTokens,
			Temperature:  cfg.LLMTemp,
			SpeechModel:  cfg.TTSModel,
			SpeechVoice:  cfg.TTSVoice,
			SpeechSpeed:  cfg.TTSSpeed,
			BufferSize:   cfg.TTSBufferSize,
			Memory:       memoryStore,
			ContextLimit: cfg.MemoryContextLimit,
		})
		if err != nil {
			if fatal {
				log.Fatalf("openai provider init failed: %v", err)
			}
			log.Printf("openai provider unavailable: %v", err)
			return false
		}
		asrProvider = voice.NewDeepgramProvider(voice.DeepgramConfig{
			APIKey:        cfg.DeepgramAPIKey,
			WSBaseURL:     cfg.DeepgramWSBaseURL,
			Model:         cfg.ASRModel,
			Language:      cfg.ASRLanguage,
			SampleRate:    cfg.ASRSampleRate,
			EndpointingMS: cfg.ASREndpointingMS,
		})
		llmProvider = openAI
		ttsProvider = openAI
		log.Printf("voice provider: live (deepgram %s + openai %s)", cfg.ASRModel, cfg.LLMModel)
		return true
	}

	useMock := func() {
		p := voice.NewMockProvider()
		asrProvider = p
		llmProvider = p
		ttsProvider = p
	}

	voiceMode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	switch voiceMode {
	case "live":
		_ = tryLive(true)
		cfg.VoiceProvider = "live"
	case "mock":
		useMock()
		cfg.VoiceProvider = "mock"
		log.Printf("voice provider: mock")
	case "", "auto":
		if tryLive(false) {
			cfg.VoiceProvider = "live"
			break
		}
		useMock()
		cfg.VoiceProvider = "mock"
		log.Printf("voice provider: mock (live credentials not configured)")
	default:
		log.Fatalf("invalid VOICE_PROVIDER: %q (expected auto|live|mock)", cfg.VoiceProvider)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		log.Printf("session %s: expired after inactivity", s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
	})

	orchestrator := &voice.Orchestrator{
		Sessions: sessions,
		Memory:   memoryStore,
		Metrics:  metrics,
		ASR:      asrProvider,
		LLM:      llmProvider,
		TTS:      ttsProvider,
	}

	api := httpapi.New(cfg, sessions, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
