// Package events carries chat generation progress from the inference loop to
// stream subscribers.
package events

import (
	"github.com/go-go-golems/colloquy/pkg/conversation"
)

type EventType string

const (
	EventTypeTextDelta      EventType = "text-delta"
	EventTypeReasoningDelta EventType = "reasoning-delta"
	EventTypeToolCall       EventType = "tool-call"
	EventTypeToolResult     EventType = "tool-result"
	// EventTypeFinish carries the sanitized messages of the chat once a
	// generation pass has been persisted.
	EventTypeFinish EventType = "finish"
	EventTypeError  EventType = "error"
)

// Event is one item of a chat stream. Only the fields relevant to Type are set.
type Event struct {
	Type       EventType              `json:"type"`
	ChatID     string                 `json:"chatId"`
	MessageID  string                 `json:"messageId,omitempty"`
	Delta      string                 `json:"delta,omitempty"`
	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Args       any                    `json:"args,omitempty"`
	Result     any                    `json:"result,omitempty"`
	Messages   []conversation.Message `json:"messages,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func NewTextDelta(chatID, messageID, delta string) Event {
	return Event{Type: EventTypeTextDelta, ChatID: chatID, MessageID: messageID, Delta: delta}
}

func NewReasoningDelta(chatID, messageID, delta string) Event {
	return Event{Type: EventTypeReasoningDelta, ChatID: chatID, MessageID: messageID, Delta: delta}
}

func NewToolCall(chatID, messageID, toolCallID, toolName string, args any) Event {
	return Event{Type: EventTypeToolCall, ChatID: chatID, MessageID: messageID, ToolCallID: toolCallID, ToolName: toolName, Args: args}
}

func NewToolResult(chatID, toolCallID, toolName string, result any) Event {
	return Event{Type: EventTypeToolResult, ChatID: chatID, ToolCallID: toolCallID, ToolName: toolName, Result: result}
}

func NewFinish(chatID string, messages []conversation.Message) Event {
	return Event{Type: EventTypeFinish, ChatID: chatID, Messages: messages}
}

func NewError(chatID string, err error) Event {
	return Event{Type: EventTypeError, ChatID: chatID, Error: err.Error()}
}

// Sink is a destination for chat events.
type Sink interface {
	PublishEvent(event Event) error
}

// NullSink discards all events.
type NullSink struct{}

func (NullSink) PublishEvent(Event) error { return nil }

var _ Sink = NullSink{}
