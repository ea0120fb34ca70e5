package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// The realtime engine drops streams silent for more than ~10s; keepalives
// well under that keep long user pauses alive.
const deepgramKeepAlive = 5 * time.Second

type DeepgramConfig struct {
	APIKey        string
	WSBaseURL     string
	Model         string
	Language      string
	SampleRate    int
	EndpointingMS int
}

// DeepgramProvider builds live speech recognizers over the Deepgram
// realtime websocket API.
type DeepgramProvider struct {
	cfg DeepgramConfig
}

func NewDeepgramProvider(cfg DeepgramConfig) *DeepgramProvider {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.deepgram.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "nova-2"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.EndpointingMS <= 0 {
		cfg.EndpointingMS = 1000
	}
	return &DeepgramProvider{cfg: cfg}
}

func (p *DeepgramProvider) NewRecognizer(sessionID string) Recognizer {
	return &deepgramRecognizer{cfg: p.cfg, sessionID: sessionID}
}

type deepgramRecognizer struct {
	cfg       DeepgramConfig
	sessionID string

	writeMu  sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func (r *deepgramRecognizer) Start(ctx context.Context, sink chan<- Utterance) error {
	u, err := url.Parse(strings.TrimRight(r.cfg.WSBaseURL, "/") + "/v1/listen")
	if err != nil {
		return fmt.Errorf("recognition url: %w", err)
	}
	q := u.Query()
	q.Set("model", r.cfg.Model)
	q.Set("language", r.cfg.Language)
	q.Set("smart_format", "true")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(r.cfg.SampleRate))
	q.Set("endpointing", strconv.Itoa(r.cfg.EndpointingMS))
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("dial recognition websocket: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.conn = conn
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.readLoop(loopCtx, sink)
	go r.keepAlive(loopCtx)
	return nil
}

func (r *deepgramRecognizer) Process(chunk []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn == nil {
		// Recognition never came up; audio is dropped, not fatal.
		return nil
	}
	return r.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// Stop terminates the stream and waits for the read loop, so no utterance
// is pushed after it returns. Safe when Start never succeeded.
func (r *deepgramRecognizer) Stop() error {
	r.stopOnce.Do(func() {
		if r.conn == nil {
			return
		}
		r.cancel()
		r.writeMu.Lock()
		_ = r.conn.WriteJSON(map[string]string{"type": "CloseStream"})
		r.writeMu.Unlock()
		_ = r.conn.Close()
		<-r.done
	})
	return nil
}

func (r *deepgramRecognizer) readLoop(ctx context.Context, sink chan<- Utterance) {
	defer close(r.done)
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return
		}
		text, ok := parseFinalTranscript(data)
		if !ok {
			continue
		}
		log.Printf("session %s: recognized %q", r.sessionID, text)
		select {
		case sink <- Utterance{Text: text, Kind: KindVoice}:
		case <-ctx.Done():
			return
		}
	}
}

func (r *deepgramRecognizer) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(deepgramKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.writeMu.Lock()
			err := r.conn.WriteJSON(map[string]string{"type": "KeepAlive"})
			r.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseFinalTranscript extracts a non-empty finalized transcript from one
// realtime result message. Anything else (partials, metadata, malformed
// payloads) is skipped so one bad frame never kills the stream.
func parseFinalTranscript(data []byte) (string, bool) {
	var res deepgramResult
	if err := json.Unmarshal(data, &res); err != nil {
		log.Printf("recognition: skipping malformed message: %v", err)
		return "", false
	}
	if res.Type != "Results" || !res.IsFinal || len(res.Channel.Alternatives) == 0 {
		return "", false
	}
	text := strings.TrimSpace(res.Channel.Alternatives[0].Transcript)
	return text, text != ""
}
