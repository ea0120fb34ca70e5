package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientText(t *testing.T) {
	msg, err := ParseClientText([]byte(`{"type":"text","content":"Hello"}`))
	if err != nil {
		t.Fatalf("ParseClientText() error = %v", err)
	}
	if msg.Content != "Hello" {
		t.Fatalf("Content = %q, want %q", msg.Content, "Hello")
	}
}

func TestParseClientTextRejectsUnknownType(t *testing.T) {
	_, err := ParseClientText([]byte(`{"type":"wat","content":"Hello"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientTextRejectsEmptyContent(t *testing.T) {
	_, err := ParseClientText([]byte(`{"type":"text","content":"  "}`))
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("error = %v, want ErrEmptyContent", err)
	}
}

func TestParseClientTextRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClientText([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestConversationItemShape(t *testing.T) {
	raw, err := json.Marshal(NewAssistantItem("Hi there."))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"conversation_item","role":"assistant","content":"Hi there."}`
	if string(raw) != want {
		t.Fatalf("payload = %s, want %s", raw, want)
	}
}
