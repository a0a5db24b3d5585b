package turns

import (
	"fmt"
	"time"
)

// TranscriptBuilder assembles an ordered transcript with deterministic ids and
// strictly increasing timestamps. It is mostly used by fixtures and tests.
type TranscriptBuilder struct {
	chatID string
	start  time.Time
	turns  []Turn
}

func NewTranscriptBuilder(chatID string, start time.Time) *TranscriptBuilder {
	return &TranscriptBuilder{chatID: chatID, start: start}
}

func (tb *TranscriptBuilder) add(role Role, content Content) *TranscriptBuilder {
	n := len(tb.turns)
	tb.turns = append(tb.turns, Turn{
		ID:        fmt.Sprintf("%s-%d", role, n),
		ChatID:    tb.chatID,
		Role:      role,
		Content:   content,
		CreatedAt: tb.start.Add(time.Duration(n) * time.Second),
	})
	return tb
}

func (tb *TranscriptBuilder) User(text string) *TranscriptBuilder {
	return tb.add(RoleUser, Text(text))
}

func (tb *TranscriptBuilder) AssistantText(text string) *TranscriptBuilder {
	return tb.add(RoleAssistant, Text(text))
}

func (tb *TranscriptBuilder) Assistant(blocks ...Block) *TranscriptBuilder {
	return tb.add(RoleAssistant, Blocks(blocks))
}

func (tb *TranscriptBuilder) Tool(results ...Block) *TranscriptBuilder {
	return tb.add(RoleTool, Blocks(results))
}

func (tb *TranscriptBuilder) Build() []Turn {
	out := make([]Turn, len(tb.turns))
	copy(out, tb.turns)
	return out
}
