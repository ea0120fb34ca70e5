package voice

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aria-voice/aria/internal/memory"
	"github.com/aria-voice/aria/internal/observability"
	"github.com/aria-voice/aria/internal/protocol"
	"github.com/aria-voice/aria/internal/session"
)

const defaultMemorySaveTimeout = 2 * time.Second

// Orchestrator runs the conversational loop for connected sessions. One
// Run call owns one websocket connection from activation to teardown.
type Orchestrator struct {
	Sessions *session.Manager
	Memory   memory.Store
	Metrics  *observability.Metrics

	ASR ASRProvider
	LLM LLMProvider
	TTS TTSProvider

	MemorySaveTimeout time.Duration
}

// Run drives one session: an ingestion actor feeding the utterance queue
// and an output actor consuming it. It returns after the transport closes
// (client disconnect or server shutdown) and teardown completes.
//
// Turn order is the core invariant: utterances are processed strictly one
// at a time, in arrival order, and every outbound event for turn N is sent
// before any event for turn N+1.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, transport Transport) error {
	if err := o.Sessions.Activate(sess.ID); err != nil {
		return err
	}
	o.Metrics.ActiveSessions.Inc()
	o.Metrics.SessionEvents.WithLabelValues("started").Inc()
	log.Printf("session %s: started (user=%s)", sess.ID, sess.UserID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	recognizer := o.ASR.NewRecognizer(sess.ID)
	generator := o.LLM.NewGenerator(runCtx, sess.ID, sess.UserID)
	synthesizer := o.TTS.NewSynthesizer(sess.ID)

	queue := newUtteranceQueue()

	// A recognizer that fails to start degrades the session to text-only
	// instead of refusing the connection.
	voiceEnabled := true
	if err := recognizer.Start(runCtx, queue.Sink()); err != nil {
		log.Printf("session %s: recognition unavailable, continuing text-only: %v", sess.ID, err)
		o.Metrics.ProviderErrors.WithLabelValues("asr", "start").Inc()
		voiceEnabled = false
	}

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		// Transport gone means nothing further can be delivered, so the
		// output actor is cancelled rather than drained.
		defer cancel()
		return o.runIngestion(gctx, sess, transport, recognizer, queue, voiceEnabled)
	})

	g.Go(func() error {
		return o.runOutput(gctx, sess, transport, generator, synthesizer, queue)
	})

	err := g.Wait()

	_ = o.Sessions.Drain(sess.ID)
	if stopErr := recognizer.Stop(); stopErr != nil {
		log.Printf("session %s: recognizer stop: %v", sess.ID, stopErr)
	}
	queue.Close()

	usage := generator.UsageStats()
	o.Metrics.TokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	o.Metrics.TokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))
	log.Printf("session %s: ended (input_tokens=%d output_tokens=%d)",
		sess.ID, usage.InputTokens, usage.OutputTokens)

	if _, closeErr := o.Sessions.Close(sess.ID); closeErr != nil && closeErr != session.ErrNotFound {
		log.Printf("session %s: close: %v", sess.ID, closeErr)
	}
	o.Metrics.ActiveSessions.Dec()
	o.Metrics.SessionEvents.WithLabelValues("ended").Inc()
	_ = transport.Close()
	return err
}

func (o *Orchestrator) runIngestion(ctx context.Context, sess *session.Session, transport Transport, recognizer Recognizer, queue *utteranceQueue, voiceEnabled bool) error {
	for {
		kind, data, err := transport.Receive(ctx)
		if err != nil {
			// Includes normal client disconnect; not an orchestration error.
			log.Printf("session %s: transport closed: %v", sess.ID, err)
			return nil
		}
		_ = o.Sessions.Touch(sess.ID)

		switch kind {
		case FrameBinary:
			o.Metrics.WSFrames.WithLabelValues("in", "binary").Inc()
			if !voiceEnabled {
				continue
			}
			if err := recognizer.Process(data); err != nil {
				log.Printf("session %s: audio forward failed: %v", sess.ID, err)
				o.Metrics.ProviderErrors.WithLabelValues("asr", "process").Inc()
			}
		case FrameText:
			o.Metrics.WSFrames.WithLabelValues("in", "text").Inc()
			msg, err := protocol.ParseClientText(data)
			if err != nil {
				log.Printf("session %s: discarding client frame: %v", sess.ID, err)
				continue
			}
			select {
			case queue.Sink() <- Utterance{Text: msg.Content, Kind: KindText}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (o *Orchestrator) runOutput(ctx context.Context, sess *session.Session, transport Transport, generator Generator, synthesizer Synthesizer, queue *utteranceQueue) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-queue.Out():
			if !ok {
				return nil
			}
			o.handleUtterance(ctx, sess, transport, generator, synthesizer, u)
		}
	}
}

// handleUtterance runs one full conversational turn. Send failures are
// logged and end the turn early; the ingestion actor notices the broken
// transport and tears the session down.
func (o *Orchestrator) handleUtterance(ctx context.Context, sess *session.Session, transport Transport, generator Generator, synthesizer Synthesizer, u Utterance) {
	if err := transport.SendJSON(protocol.NewUserItem(u.Text)); err != nil {
		log.Printf("session %s: send user item: %v", sess.ID, err)
		return
	}
	o.Metrics.WSFrames.WithLabelValues("out", "text").Inc()
	o.saveTurn(sess, protocol.RoleUser, u.Text)

	start := time.Now()
	firstAudioSeen := false

	fragments := generator.GenerateResponse(ctx, u.Text)
	sentences := SegmentSentences(ctx, fragments)

	var reply strings.Builder
	for sentence := range sentences {
		if err := transport.SendJSON(protocol.NewAssistantItem(sentence)); err != nil {
			log.Printf("session %s: send assistant item: %v", sess.ID, err)
			return
		}
		o.Metrics.WSFrames.WithLabelValues("out", "text").Inc()
		if reply.Len() > 0 {
			reply.WriteByte(' ')
		}
		reply.WriteString(sentence)

		if u.Kind != KindVoice {
			continue
		}
		for chunk := range synthesizer.Speak(ctx, sentence) {
			if !firstAudioSeen {
				firstAudioSeen = true
				o.Metrics.ObserveFirstAudioLatency(time.Since(start))
			}
			if err := transport.SendBinary(chunk); err != nil {
				log.Printf("session %s: send audio: %v", sess.ID, err)
				return
			}
			o.Metrics.WSFrames.WithLabelValues("out", "binary").Inc()
		}
	}

	o.saveTurn(sess, protocol.RoleAssistant, reply.String())
}

// saveTurn persists one transcript turn. Persistence is best-effort and
// bounded so a slow store never stalls the conversation.
func (o *Orchestrator) saveTurn(sess *session.Session, role, content string) {
	if o.Memory == nil || strings.TrimSpace(content) == "" {
		return
	}
	timeout := o.MemorySaveTimeout
	if timeout <= 0 {
		timeout = defaultMemorySaveTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := o.Memory.SaveTurn(ctx, memory.TurnRecord{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		log.Printf("session %s: save %s turn: %v", sess.ID, role, err)
	}
}
