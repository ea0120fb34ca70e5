package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aria-voice/aria/internal/memory"
	"github.com/aria-voice/aria/internal/protocol"
)

const systemPrompt = "You are Aria, a helpful voice assistant. " +
	"Keep answers concise (under two sentences) for voice output."

// apologyFragment is the single user-facing fragment a failed generation
// turn degrades to. No retry; the failure is terminal for that turn only.
const apologyFragment = "I'm sorry, I'm having trouble responding right now."

const memoryContextTimeout = 350 * time.Millisecond

type OpenAIConfig struct {
	APIKey  string
	BaseURL string

	ChatModel   string
	MaxTokens   int
	Temperature float64

	SpeechModel string
	SpeechVoice string
	SpeechSpeed float64
	// BufferSize is the minimum number of synthesized bytes coalesced
	// into one outbound chunk; a latency/smoothness tunable, not a
	// correctness requirement.
	BufferSize int

	Memory       memory.Store
	ContextLimit int
}

// OpenAIProvider builds per-session generators and synthesizers backed by
// streaming chat completions and streaming speech synthesis.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if strings.TrimSpace(cfg.SpeechModel) == "" {
		cfg.SpeechModel = "tts-1"
	}
	if strings.TrimSpace(cfg.SpeechVoice) == "" {
		cfg.SpeechVoice = "alloy"
	}
	if cfg.SpeechSpeed <= 0 {
		cfg.SpeechSpeed = 1.0
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 19000
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// NewGenerator seeds conversation history with the user's recent turns so
// repeated sessions keep continuity. Seeding is best-effort under a short
// timeout; a cold start degrades to an empty history.
func (p *OpenAIProvider) NewGenerator(ctx context.Context, sessionID, userID string) Generator {
	g := &openAIGenerator{client: p.client, cfg: p.cfg, sessionID: sessionID}

	if p.cfg.Memory != nil && userID != "" {
		seedCtx, cancel := context.WithTimeout(ctx, memoryContextTimeout)
		defer cancel()
		recent, err := p.cfg.Memory.RecentContext(seedCtx, userID, p.cfg.ContextLimit)
		if err != nil {
			log.Printf("session %s: context seed failed: %v", sessionID, err)
		}
		for _, r := range recent {
			role := openai.ChatMessageRoleUser
			if r.Role == protocol.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			g.history = append(g.history, openai.ChatCompletionMessage{Role: role, Content: r.Content})
		}
	}
	return g
}

func (p *OpenAIProvider) NewSynthesizer(sessionID string) Synthesizer {
	return &openAISynthesizer{client: p.client, cfg: p.cfg, sessionID: sessionID}
}

type openAIGenerator struct {
	client    *openai.Client
	cfg       OpenAIConfig
	sessionID string

	// history and turn are only touched from GenerateResponse goroutines,
	// which the session strictly serializes.
	history []openai.ChatCompletionMessage
	turn    int64

	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

func (g *openAIGenerator) GenerateResponse(ctx context.Context, query string) <-chan string {
	out := make(chan string, 32)
	go func() {
		defer close(out)

		g.turn++
		g.history = append(g.history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: query,
		})

		messages := make([]openai.ChatCompletionMessage, 0, len(g.history)+1)
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
		messages = append(messages, g.history...)

		stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:         g.cfg.ChatModel,
			Messages:      messages,
			MaxTokens:     g.cfg.MaxTokens,
			Temperature:   float32(g.cfg.Temperature),
			Stream:        true,
			StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		})
		if err != nil {
			log.Printf("session %s turn %d: generation failed: %v", g.sessionID, g.turn, err)
			g.apologize(ctx, out)
			return
		}
		defer stream.Close()

		var full strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Printf("session %s turn %d: generation truncated: %v", g.sessionID, g.turn, err)
				g.apologize(ctx, out)
				return
			}
			if resp.Usage != nil {
				g.inputTokens.Add(int64(resp.Usage.PromptTokens))
				g.outputTokens.Add(int64(resp.Usage.CompletionTokens))
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				full.WriteString(choice.Delta.Content)
				select {
				case out <- choice.Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}

		g.history = append(g.history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: full.String(),
		})
	}()
	return out
}

func (g *openAIGenerator) apologize(ctx context.Context, out chan<- string) {
	select {
	case out <- apologyFragment:
	case <-ctx.Done():
	}
}

func (g *openAIGenerator) UsageStats() UsageStats {
	return UsageStats{
		InputTokens:  g.inputTokens.Load(),
		OutputTokens: g.outputTokens.Load(),
	}
}

type openAISynthesizer struct {
	client    *openai.Client
	cfg       OpenAIConfig
	sessionID string
}

func (s *openAISynthesizer) Speak(ctx context.Context, text string) <-chan []byte {
	out := make(chan []byte, 4)
	if strings.TrimSpace(text) == "" {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model: openai.SpeechModel(s.cfg.SpeechModel),
			Input: text,
			Voice: openai.SpeechVoice(s.cfg.SpeechVoice),
			// Raw PCM has lower first-chunk latency than framed formats.
			ResponseFormat: openai.SpeechResponseFormatPcm,
			Speed:          s.cfg.SpeechSpeed,
		})
		if err != nil {
			log.Printf("session %s: synthesis failed: %v", s.sessionID, err)
			return
		}
		defer resp.Close()

		if err := coalesceAudio(ctx, resp, s.cfg.BufferSize, out); err != nil {
			log.Printf("session %s: synthesis stream ended early: %v", s.sessionID, err)
		}
	}()
	return out
}

// coalesceAudio reads raw synthesis output and emits chunks of at least
// threshold bytes, flushing the remainder at end of stream. Returns any
// non-EOF read error; chunks already emitted are never retracted.
func coalesceAudio(ctx context.Context, r io.Reader, threshold int, out chan<- []byte) error {
	buf := make([]byte, 4096)
	pending := make([]byte, 0, threshold)

	emit := func() bool {
		if len(pending) == 0 {
			return true
		}
		chunk := make([]byte, len(pending))
		copy(chunk, pending)
		pending = pending[:0]
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if len(pending) >= threshold && !emit() {
				return nil
			}
		}
		if err != nil {
			emit()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read synthesis output: %w", err)
		}
	}
}
