package transcript

import (
	"strings"

	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// invocationRef locates one invocation inside the messages built so far.
type invocationRef struct {
	message    int
	invocation int
}

// viewBuilder accumulates UI messages and keeps an index from tool call id to
// the invocations still waiting for a result, so that each tool turn only
// touches the invocations it resolves.
type viewBuilder struct {
	messages []conversation.Message
	pending  map[string][]invocationRef
}

func newViewBuilder(capacity int) *viewBuilder {
	return &viewBuilder{
		messages: make([]conversation.Message, 0, capacity),
		pending:  map[string][]invocationRef{},
	}
}

func (vb *viewBuilder) add(m conversation.Message) {
	idx := len(vb.messages)
	for j, ti := range m.ToolInvocations {
		if ti.State == conversation.StateCall {
			vb.pending[ti.ToolCallID] = append(vb.pending[ti.ToolCallID], invocationRef{message: idx, invocation: j})
		}
	}
	vb.messages = append(vb.messages, m)
}

// resolve applies a tool turn. The builder owns every message and invocation
// slice it holds, so updating them in place is safe.
func (vb *viewBuilder) resolve(toolTurn turns.Turn) {
	for id, b := range toolResultsByID(toolTurn) {
		refs, ok := vb.pending[id]
		if !ok {
			continue
		}
		for _, ref := range refs {
			invs := vb.messages[ref.message].ToolInvocations
			invs[ref.invocation] = invs[ref.invocation].WithResult(b.Result)
		}
		delete(vb.pending, id)
	}
}

// ToUIView converts stored turns into UI messages in chronological order.
//
// Tool turns are never emitted. A tool turn whose content is a block list with
// a tool call id on every block resolves the matching pending invocations of
// the messages produced so far; any other tool turn is ignored, as is a result
// with no pending invocation. The outcome is the same as folding
// ReconcileToolResult over the messages at each tool turn.
func ToUIView(stored []turns.Turn) []conversation.Message {
	vb := newViewBuilder(len(stored))
	for _, t := range stored {
		if t.Role == turns.RoleTool {
			if isToolResultTurn(t) {
				vb.resolve(t)
			}
			continue
		}
		vb.add(toUIMessage(t))
	}
	return vb.messages
}

func toUIMessage(t turns.Turn) conversation.Message {
	m := conversation.Message{
		ID:   t.ID,
		Role: t.Role,
	}
	if !t.CreatedAt.IsZero() {
		createdAt := t.CreatedAt
		m.CreatedAt = &createdAt
	}

	if text, ok := turns.TextOf(t.Content); ok {
		m.Content = text
		return m
	}

	blocks, _ := turns.BlocksOf(t.Content)
	var sb strings.Builder
	var invocations []conversation.ToolInvocation
	for _, b := range blocks {
		switch b.Kind {
		case turns.BlockKindText:
			sb.WriteString(b.Text)
		case turns.BlockKindToolCall:
			if b.ToolCallID == "" || b.ToolName == "" {
				continue
			}
			args := b.Args
			if args == nil {
				args = map[string]any{}
			}
			invocations = append(invocations, conversation.ToolInvocation{
				State:      conversation.StateCall,
				ToolCallID: b.ToolCallID,
				ToolName:   b.ToolName,
				Args:       args,
			})
		case turns.BlockKindReasoning:
			// last non-empty reasoning block wins
			if b.Reasoning != "" {
				m.Reasoning = b.Reasoning
			}
		}
	}
	m.Content = sb.String()
	m.ToolInvocations = invocations
	return m
}
