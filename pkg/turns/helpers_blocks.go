package turns

import (
	"time"

	"github.com/google/uuid"
)

// Convenience constructors for commonly used Block shapes.

// NewTextBlock returns a text fragment.
func NewTextBlock(text string) Block {
	return Block{Kind: BlockKindText, Text: text}
}

// NewToolCallBlock returns a Block requesting invocation of a tool.
// id correlates the call with the tool-result block produced for it.
func NewToolCallBlock(id string, name string, args any) Block {
	return Block{
		Kind:       BlockKindToolCall,
		ToolCallID: id,
		ToolName:   name,
		Args:       args,
	}
}

// NewToolResultBlock returns a Block capturing the result of a tool execution.
// id must match the corresponding tool-call id.
func NewToolResultBlock(id string, name string, result any) Block {
	return Block{
		Kind:       BlockKindToolResult,
		ToolCallID: id,
		ToolName:   name,
		Result:     result,
	}
}

// NewReasoningBlock returns a Block holding captured model reasoning.
func NewReasoningBlock(reasoning string) Block {
	return Block{Kind: BlockKindReasoning, Reasoning: reasoning}
}

type TurnOption func(*Turn)

func WithID(id string) TurnOption {
	return func(t *Turn) {
		t.ID = id
	}
}

func WithChatID(chatID string) TurnOption {
	return func(t *Turn) {
		t.ChatID = chatID
	}
}

func WithCreatedAt(createdAt time.Time) TurnOption {
	return func(t *Turn) {
		t.CreatedAt = createdAt
	}
}

// NewTurn creates a Turn with a fresh uuid and the current time.
func NewTurn(role Role, content Content, options ...TurnOption) Turn {
	ret := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewUserTextTurn(text string, options ...TurnOption) Turn {
	return NewTurn(RoleUser, Text(text), options...)
}

func NewAssistantTurn(blocks []Block, options ...TurnOption) Turn {
	return NewTurn(RoleAssistant, Blocks(blocks), options...)
}

func NewToolTurn(results []Block, options ...TurnOption) Turn {
	return NewTurn(RoleTool, Blocks(results), options...)
}
