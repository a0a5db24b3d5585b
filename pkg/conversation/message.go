// Package conversation holds the presentation-facing shape of a chat
// transcript: every Message has plain string content, and tool usage is
// expressed as ToolInvocations carrying their call/result lifecycle.
package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/colloquy/pkg/turns"
)

type InvocationState string

const (
	StateCall   InvocationState = "call"
	StateResult InvocationState = "result"
)

// ToolInvocation is the lifecycle of one tool usage within an assistant message.
// Result is only meaningful when State is StateResult.
type ToolInvocation struct {
	State      InvocationState `json:"state"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       any             `json:"args"`
	Result     any             `json:"result,omitempty"`
}

func (ti ToolInvocation) Resolved() bool {
	return ti.State == StateResult
}

// WithResult returns a copy of the invocation moved to the result state.
func (ti ToolInvocation) WithResult(result any) ToolInvocation {
	ti.State = StateResult
	ti.Result = result
	return ti
}

func (ti ToolInvocation) String() string {
	args, _ := json.Marshal(ti.Args)
	if ti.Resolved() {
		result, _ := json.Marshal(ti.Result)
		return fmt.Sprintf("ToolInvocation{ID: %s, Name: %s, Args: %s, Result: %s}", ti.ToolCallID, ti.ToolName, args, result)
	}
	return fmt.Sprintf("ToolInvocation{ID: %s, Name: %s, Args: %s, pending}", ti.ToolCallID, ti.ToolName, args)
}

// Message is one UI-facing turn.
type Message struct {
	ID              string           `json:"id"`
	Role            turns.Role       `json:"role"`
	Content         string           `json:"content"`
	Reasoning       string           `json:"reasoning,omitempty"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	CreatedAt       *time.Time       `json:"createdAt,omitempty"`
}

// Clone copies the message including its invocation slice.
func (m Message) Clone() Message {
	if m.ToolInvocations != nil {
		m.ToolInvocations = append([]ToolInvocation(nil), m.ToolInvocations...)
	}
	return m
}

func (m Message) View() string {
	text := m.Content
	// If we are markdown, add a newline so that it becomes valid markdown to parse.
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]: %s", m.Role, strings.TrimRight(text, "\n"))
	if m.Reasoning != "" {
		fmt.Fprintf(&sb, "\n  (reasoning) %s", strings.TrimRight(m.Reasoning, "\n"))
	}
	for _, ti := range m.ToolInvocations {
		fmt.Fprintf(&sb, "\n  %s", ti.String())
	}
	return sb.String()
}

type Conversation []Message

// GetSinglePrompt concatenates all the messages together, prefixed by role.
func (messages Conversation) GetSinglePrompt() string {
	if len(messages) == 0 {
		return ""
	}
	if len(messages) == 1 {
		return messages[0].Content
	}

	prompt := ""
	for _, message := range messages {
		prompt += fmt.Sprintf("[%s]: %s\n", message.Role, message.Content)
	}
	return prompt
}
