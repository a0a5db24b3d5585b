package transcript

import (
	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// SanitizeGeneratedTurns drops tool calls that never received a result and
// empty text blocks from the assistant turns of one generation pass. When
// reasoning is non-empty a reasoning block carrying it is appended to every
// structured assistant turn. Turns left with an empty block list are removed.
// Turns with string content are never removed, even when the string is empty.
func SanitizeGeneratedTurns(ts []turns.Turn, reasoning string) []turns.Turn {
	resultIDs := map[string]struct{}{}
	for _, t := range ts {
		if t.Role != turns.RoleTool {
			continue
		}
		blocks, _ := turns.BlocksOf(t.Content)
		for _, b := range blocks {
			if b.ToolCallID != "" {
				resultIDs[b.ToolCallID] = struct{}{}
			}
		}
	}

	ret := make([]turns.Turn, 0, len(ts))
	for _, t := range ts {
		if t.Role == turns.RoleAssistant {
			if blocks, ok := turns.BlocksOf(t.Content); ok {
				t.Content = sanitizeAssistantBlocks(blocks, resultIDs)
				if reasoning != "" {
					t = turns.AppendBlocks(t, turns.NewReasoningBlock(reasoning))
				}
			}
		}
		if blocks, ok := turns.BlocksOf(t.Content); ok && len(blocks) == 0 {
			continue
		}
		ret = append(ret, t)
	}
	return ret
}

func sanitizeAssistantBlocks(blocks turns.Blocks, resultIDs map[string]struct{}) turns.Blocks {
	kept := make(turns.Blocks, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case turns.BlockKindToolCall:
			if _, ok := resultIDs[b.ToolCallID]; !ok {
				continue
			}
		case turns.BlockKindText:
			if b.Text == "" {
				continue
			}
		case turns.BlockKindToolResult, turns.BlockKindReasoning:
		}
		kept = append(kept, b)
	}
	return kept
}

// SanitizeUIView removes unresolved tool invocations from assistant messages
// and then drops every message that has neither content nor invocations.
// Applying it to its own output changes nothing.
func SanitizeUIView(msgs []conversation.Message) []conversation.Message {
	ret := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		m = m.Clone()
		if m.Role == turns.RoleAssistant && m.ToolInvocations != nil {
			m.ToolInvocations = resolvedInvocations(m.ToolInvocations)
		}
		if m.Content == "" && len(m.ToolInvocations) == 0 {
			continue
		}
		ret = append(ret, m)
	}
	return ret
}

func resolvedInvocations(invs []conversation.ToolInvocation) []conversation.ToolInvocation {
	resolvedIDs := map[string]struct{}{}
	for _, ti := range invs {
		if ti.Resolved() {
			resolvedIDs[ti.ToolCallID] = struct{}{}
		}
	}
	var kept []conversation.ToolInvocation
	for _, ti := range invs {
		if _, ok := resolvedIDs[ti.ToolCallID]; ti.Resolved() || ok {
			kept = append(kept, ti)
		}
	}
	return kept
}
