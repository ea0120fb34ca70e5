package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aria-voice/aria/internal/config"
	"github.com/aria-voice/aria/internal/memory"
	"github.com/aria-voice/aria/internal/observability"
	"github.com/aria-voice/aria/internal/protocol"
	"github.com/aria-voice/aria/internal/session"
	"github.com/aria-voice/aria/internal/voice"
)

func newTestServer(t *testing.T, namespace string, mock *voice.MockProvider) (*httptest.Server, *session.Manager) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		VoiceProvider:            "mock",
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	// Collectors register globally, so each test picks a unique namespace.
	metrics := observability.NewMetrics("test_httpapi_" + namespace + "_" + time.Now().Format("150405000000000"))

	var runner SessionRunner
	if mock != nil {
		runner = &voice.Orchestrator{
			Sessions: sessions,
			Memory:   memory.NewInMemoryStore(),
			Metrics:  metrics,
			ASR:      mock,
			LLM:      mock,
			TTS:      mock,
		}
	}

	ts := httptest.NewServer(New(cfg, sessions, runner, metrics).Router())
	t.Cleanup(ts.Close)
	return ts, sessions
}

func createSession(t *testing.T, ts *httptest.Server, userID string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"user_id": userID})
	res, err := http.Post(ts.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created session.CreateResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatalf("missing session_id in create response")
	}
	return created.SessionID
}

func TestCreateAndEndSession(t *testing.T) {
	ts, _ := newTestServer(t, "lifecycle", nil)

	id := createSession(t, ts, "user-1")

	endRes, err := http.Post(ts.URL+"/v1/sessions/"+id+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}

	missingRes, err := http.Post(ts.URL+"/v1/sessions/no-such-id/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end unknown session request error = %v", err)
	}
	defer missingRes.Body.Close()
	if missingRes.StatusCode != http.StatusNotFound {
		t.Fatalf("end unknown status = %d, want %d", missingRes.StatusCode, http.StatusNotFound)
	}
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t, "health", nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}

func dialSession(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readConversation reads frames until wantAssistant assistant items have
// arrived, returning items and binary frame count.
func readConversation(t *testing.T, conn *websocket.Conn, wantAssistant int) ([]protocol.ConversationItem, int) {
	t.Helper()
	var items []protocol.ConversationItem
	assistant := 0
	binary := 0

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for assistant < wantAssistant {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v (items so far: %+v)", err, items)
		}
		switch msgType {
		case websocket.BinaryMessage:
			binary++
		case websocket.TextMessage:
			var item protocol.ConversationItem
			if err := json.Unmarshal(data, &item); err != nil {
				t.Fatalf("decode transcript frame: %v", err)
			}
			items = append(items, item)
			if item.Role == protocol.RoleAssistant {
				assistant++
			}
		}
	}
	return items, binary
}

func TestWebSocketTextConversation(t *testing.T) {
	ts, _ := newTestServer(t, "wstext", voice.NewMockProvider())
	id := createSession(t, ts, "user-1")
	conn := dialSession(t, ts, id)

	msg, _ := json.Marshal(protocol.ClientText{Type: protocol.TypeText, Content: "good morning"})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write text frame: %v", err)
	}

	items, binary := readConversation(t, conn, 1)
	if items[0].Role != protocol.RoleUser || items[0].Content != "good morning" {
		t.Fatalf("first item = %+v, want echoed user utterance", items[0])
	}
	if binary != 0 {
		t.Fatalf("typed turn produced %d audio frames, want 0", binary)
	}
}

func TestWebSocketVoiceConversation(t *testing.T) {
	mock := voice.NewMockProvider()
	mock.FinalizeAfter = 1024
	ts, _ := newTestServer(t, "wsvoice", mock)
	id := createSession(t, ts, "user-1")
	conn := dialSession(t, ts, id)

	if err := conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte{0x01}, 2048)); err != nil {
		t.Fatalf("write audio frame: %v", err)
	}

	items, _ := readConversation(t, conn, 1)
	if items[0].Role != protocol.RoleUser || items[0].Content != mock.Transcript {
		t.Fatalf("first item = %+v, want finalized transcript", items[0])
	}

	// Audio for the reply may trail the transcript; keep reading briefly.
	binary := 0
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for binary == 0 {
		msgType, _, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no audio frame for a voice turn: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			binary++
		}
	}
}

func TestWebSocketRequiresKnownSession(t *testing.T) {
	ts, _ := newTestServer(t, "wsunknown", voice.NewMockProvider())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/ws?session_id=no-such-id"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded for unknown session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("dial response = %+v, want 404", res)
	}
}

func TestWebSocketRejectsSecondConnection(t *testing.T) {
	ts, sessions := newTestServer(t, "wssecond", voice.NewMockProvider())
	id := createSession(t, ts, "user-1")
	_ = dialSession(t, ts, id)

	// The first connection activates the session; a second upgrade on the
	// same ID is refused.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s, err := sessions.Get(id)
		if err == nil && s.Status == session.StatusActive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never became active")
		}
		time.Sleep(10 * time.Millisecond)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/ws?session_id=" + id
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("second dial succeeded, want refusal")
	}
	if res == nil || res.StatusCode != http.StatusConflict {
		t.Fatalf("second dial response = %+v, want 409", res)
	}
}
