package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice pipeline service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	VoiceProvider string

	DeepgramAPIKey    string
	DeepgramWSBaseURL string
	ASRModel          string
	ASRLanguage       string
	ASRSampleRate     int
	ASREndpointingMS  int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMModel      string
	LLMMaxTokens  int
	LLMTemp       float64

	TTSModel      string
	TTSVoice      string
	TTSSpeed      float64
	TTSBufferSize int
	TTSSampleRate int

	DatabaseURL        string
	MemoryContextLimit int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8026"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		AllowAnyOrigin:    false,
		VoiceProvider:     envOrDefault("VOICE_PROVIDER", "auto"),
		DeepgramAPIKey:    envTrimmed("DEEPGRAM_API_KEY"),
		DeepgramWSBaseURL: envOrDefault("DEEPGRAM_WS_BASE_URL", "wss://api.deepgram.com"),
		// nova-2 is the fastest realtime recognition model.
		ASRModel:    envOrDefault("ASR_MODEL", "nova-2"),
		ASRLanguage: envOrDefault("ASR_LANGUAGE", "en-US"),
		// Linear PCM at 16 kHz mono is the fixed inbound audio contract.
		ASRSampleRate:    16000,
		ASREndpointingMS: 1000,
		OpenAIAPIKey:     envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:    envTrimmed("OPENAI_BASE_URL"),
		LLMModel:         envOrDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:     1000,
		LLMTemp:          0.7,
		TTSModel:         envOrDefault("TTS_MODEL", "tts-1"),
		TTSVoice:         envOrDefault("TTS_VOICE", "alloy"),
		// Slightly above 1.0 trims perceived response latency.
		TTSSpeed: 1.1,
		// Coalescing synthesis output below this size causes audible breakup.
		TTSBufferSize:            19000,
		TTSSampleRate:            24000,
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		MemoryContextLimit:       8,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 5 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ASRSampleRate, err = intFromEnv("ASR_SAMPLE_RATE", cfg.ASRSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.ASREndpointingMS, err = intFromEnv("ASR_ENDPOINTING_MS", cfg.ASREndpointingMS)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMMaxTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTemp, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemp)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSSpeed, err = floatFromEnv("TTS_SPEED", cfg.TTSSpeed)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSBufferSize, err = intFromEnv("TTS_BUFFER_SIZE", cfg.TTSBufferSize)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSSampleRate, err = intFromEnv("TTS_SAMPLE_RATE", cfg.TTSSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryContextLimit, err = intFromEnv("MEMORY_CONTEXT_LIMIT", cfg.MemoryContextLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ASRSampleRate <= 0 {
		return Config{}, fmt.Errorf("ASR_SAMPLE_RATE must be positive")
	}
	if cfg.ASREndpointingMS <= 0 {
		return Config{}, fmt.Errorf("ASR_ENDPOINTING_MS must be positive")
	}
	if cfg.LLMMaxTokens <= 0 {
		return Config{}, fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if cfg.TTSSpeed < 0.25 || cfg.TTSSpeed > 4.0 {
		return Config{}, fmt.Errorf("TTS_SPEED must be between 0.25 and 4.0")
	}
	if cfg.TTSBufferSize <= 0 {
		return Config{}, fmt.Errorf("TTS_BUFFER_SIZE must be positive")
	}
	if cfg.MemoryContextLimit <= 0 {
		return Config{}, fmt.Errorf("MEMORY_CONTEXT_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
