package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies JSON frame variants on the conversation websocket.
type MessageType string

const (
	TypeText             MessageType = "text"
	TypeConversationItem MessageType = "conversation_item"
)

// Role tags a conversation item with its speaker.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrEmptyContent    = errors.New("empty content")
)

// ClientText is the inbound envelope for typed (non-voice) user input.
type ClientText struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// ConversationItem is the outbound transcript event, one per finalized
// user utterance and one per assistant sentence.
type ConversationItem struct {
	Type    MessageType `json:"type"`
	Role    string      `json:"role"`
	Content string      `json:"content"`
}

func NewUserItem(content string) ConversationItem {
	return ConversationItem{Type: TypeConversationItem, Role: RoleUser, Content: content}
}

func NewAssistantItem(content string) ConversationItem {
	return ConversationItem{Type: TypeConversationItem, Role: RoleAssistant, Content: content}
}

// ParseClientText validates an inbound text frame. Unknown types and
// malformed payloads are reported to the caller, which logs and discards
// them without closing the connection.
func ParseClientText(raw []byte) (ClientText, error) {
	var msg ClientText
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientText{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if msg.Type != TypeText {
		return ClientText{}, fmt.Errorf("%w: %q", ErrUnsupportedType, msg.Type)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return ClientText{}, ErrEmptyContent
	}
	return msg, nil
}
