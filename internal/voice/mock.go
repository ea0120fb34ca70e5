package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider is a deterministic fallback provider used when no live
// credentials are configured, and the test double for all three
// capabilities.
type MockProvider struct {
	// FinalizeAfter is how many audio bytes the fake recognizer consumes
	// before finalizing one transcript.
	FinalizeAfter int
	// Transcript is the text every finalized fake recognition yields.
	Transcript string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{FinalizeAfter: 3200, Transcript: "simulated voice input"}
}

func (p *MockProvider) NewRecognizer(_ string) Recognizer {
	return &mockRecognizer{finalizeAfter: p.FinalizeAfter, transcript: p.Transcript}
}

func (p *MockProvider) NewGenerator(_ context.Context, _, _ string) Generator {
	return &mockGenerator{}
}

func (p *MockProvider) NewSynthesizer(_ string) Synthesizer {
	return &mockSynthesizer{}
}

type mockRecognizer struct {
	mu            sync.Mutex
	sink          chan<- Utterance
	finalizeAfter int
	transcript    string
	pending       int
	stopped       bool
}

func (r *mockRecognizer) Start(_ context.Context, sink chan<- Utterance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
	return nil
}

func (r *mockRecognizer) Process(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.sink == nil || len(chunk) == 0 {
		return nil
	}
	r.pending += len(chunk)
	if r.pending >= r.finalizeAfter {
		r.pending = 0
		r.sink <- Utterance{Text: r.transcript, Kind: KindVoice}
	}
	return nil
}

func (r *mockRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

type mockGenerator struct {
	turns int
	usage UsageStats
}

func (g *mockGenerator) GenerateResponse(ctx context.Context, query string) <-chan string {
	out := make(chan string, 16)
	g.turns++
	words := strings.Fields(fmt.Sprintf("Echo %d: %s.", g.turns, strings.TrimSpace(query)))
	g.usage.InputTokens += int64(len(strings.Fields(query)))
	g.usage.OutputTokens += int64(len(words))

	go func() {
		defer close(out)
		for i, w := range words {
			frag := w
			if i < len(words)-1 {
				frag += " "
			}
			select {
			case out <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (g *mockGenerator) UsageStats() UsageStats { return g.usage }

type mockSynthesizer struct{}

func (s *mockSynthesizer) Speak(ctx context.Context, text string) <-chan []byte {
	out := make(chan []byte, 1)
	if strings.TrimSpace(text) == "" {
		close(out)
		return out
	}
	go func() {
		defer close(out)
		select {
		case out <- []byte(text):
		case <-ctx.Done():
		}
	}()
	return out
}
