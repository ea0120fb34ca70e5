package voice

import "context"

// UtteranceKind tags a user turn by its origin.
type UtteranceKind string

const (
	KindVoice UtteranceKind = "voice"
	KindText  UtteranceKind = "text"
)

// Utterance is one finalized unit of user input ready for generation.
type Utterance struct {
	Text string
	Kind UtteranceKind
}

// UsageStats holds cumulative token counters for one generator instance.
// Counters only grow; the orchestrator reads them once at teardown.
type UsageStats struct {
	InputTokens  int64
	OutputTokens int64
}

// Recognizer converts a live audio byte stream into finalized voice
// utterances pushed onto the sink channel. The sink is the hand-off from
// the provider's read goroutine into the session's output actor; the
// recognizer must never push after Stop returns.
type Recognizer interface {
	Start(ctx context.Context, sink chan<- Utterance) error
	Process(chunk []byte) error
	Stop() error
}

// Generator converts one utterance into a finite stream of text fragments
// in token order. Instances keep conversation history across calls; the
// session serializes calls, so implementations need no locking around it.
type Generator interface {
	GenerateResponse(ctx context.Context, query string) <-chan string
	UsageStats() UsageStats
}

// Synthesizer renders one sentence into a finite stream of audio chunks.
// Empty or whitespace-only input yields an immediately closed channel.
type Synthesizer interface {
	Speak(ctx context.Context, text string) <-chan []byte
}

// FrameKind classifies a transport frame.
type FrameKind int

const (
	FrameBinary FrameKind = iota
	FrameText
)

// Transport is the duplex message stream for one session. Receive blocks
// until the next inbound frame; Send* are safe for use from the output
// actor only.
type Transport interface {
	Receive(ctx context.Context) (FrameKind, []byte, error)
	SendJSON(v any) error
	SendBinary(data []byte) error
	Close() error
}

// Adapters bundles the per-session provider instances. Each session owns
// its set exclusively; they are selected at construction time, never via
// runtime type inspection.
type Adapters struct {
	Recognizer  Recognizer
	Generator   Generator
	Synthesizer Synthesizer
}

// ASRProvider builds one recognizer per session.
type ASRProvider interface {
	NewRecognizer(sessionID string) Recognizer
}

// LLMProvider builds one generator per session, scoped to the principal.
type LLMProvider interface {
	NewGenerator(ctx context.Context, sessionID, userID string) Generator
}

// TTSProvider builds one synthesizer per session.
type TTSProvider interface {
	NewSynthesizer(sessionID string) Synthesizer
}
