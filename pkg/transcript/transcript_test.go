package transcript

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func decodeTurns(t *testing.T, raw string) []turns.Turn {
	t.Helper()
	var ts []turns.Turn
	require.NoError(t, json.Unmarshal([]byte(raw), &ts))
	return ts
}

func TestToUIView_ToolResultResolvesInvocation(t *testing.T) {
	stored := decodeTurns(t, `[
		{"id":"u1","role":"user","content":"Hi"},
		{"id":"a1","role":"assistant","content":[{"type":"tool-call","toolCallId":"a1","toolName":"x","args":{}}]},
		{"id":"t1","role":"tool","content":[{"toolCallId":"a1","result":"42"}]}
	]`)

	view := ToUIView(stored)
	require.Len(t, view, 2)
	assert.Equal(t, "Hi", view[0].Content)
	assert.Nil(t, view[0].ToolInvocations)

	require.Len(t, view[1].ToolInvocations, 1)
	inv := view[1].ToolInvocations[0]
	assert.Equal(t, conversation.StateResult, inv.State)
	assert.Equal(t, "42", inv.Result)
	assert.Equal(t, "x", inv.ToolName)
	assert.Equal(t, map[string]any{}, inv.Args)
}

func TestToUIView_BlockContent(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		Assistant(
			turns.NewTextBlock("Hello, "),
			turns.NewTextBlock(""),
			turns.NewToolCallBlock("c1", "search", nil),
			turns.NewTextBlock("world"),
			turns.NewToolCallBlock("", "nameless", nil),
			turns.NewToolCallBlock("c2", "", nil),
		).
		Build()

	view := ToUIView(stored)
	require.Len(t, view, 1)
	assert.Equal(t, "Hello, world", view[0].Content)
	require.Len(t, view[0].ToolInvocations, 1)
	assert.Equal(t, "c1", view[0].ToolInvocations[0].ToolCallID)
	assert.Equal(t, conversation.StateCall, view[0].ToolInvocations[0].State)
	require.NotNil(t, view[0].CreatedAt)
	assert.True(t, t0.Equal(*view[0].CreatedAt))
}

func TestToUIView_StringContentHasNoAnnotations(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).User("").AssistantText("ok").Build()
	view := ToUIView(stored)
	require.Len(t, view, 2)
	assert.Equal(t, "", view[0].Content)
	assert.Empty(t, view[1].Reasoning)
	assert.Nil(t, view[1].ToolInvocations)
}

// Multiple reasoning blocks in one turn keep only the last one. This mirrors
// long-standing behavior and is asserted so a change shows up here.
func TestToUIView_LastReasoningWins(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		Assistant(
			turns.NewReasoningBlock("first"),
			turns.NewTextBlock("answer"),
			turns.NewReasoningBlock("second"),
		).
		Build()
	view := ToUIView(stored)
	require.Len(t, view, 1)
	assert.Equal(t, "second", view[0].Reasoning)
}

func TestToUIView_MalformedToolTurnsAreIgnored(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		Assistant(turns.NewToolCallBlock("c1", "x", map[string]any{"q": 1})).
		Build()
	stored = append(stored,
		turns.Turn{ID: "tool-str", Role: turns.RoleTool, Content: turns.Text("c1")},
		turns.Turn{ID: "tool-mixed", Role: turns.RoleTool, Content: turns.Blocks{
			turns.NewToolResultBlock("c1", "x", "r"),
			turns.NewTextBlock("no id"),
		}},
		turns.Turn{ID: "tool-empty", Role: turns.RoleTool, Content: turns.Blocks{}},
		turns.Turn{ID: "tool-nil", Role: turns.RoleTool},
	)

	view := ToUIView(stored)
	require.Len(t, view, 1)
	require.Len(t, view[0].ToolInvocations, 1)
	assert.Equal(t, conversation.StateCall, view[0].ToolInvocations[0].State)
	assert.Nil(t, view[0].ToolInvocations[0].Result)
}

func TestToUIView_UnmatchedToolTurnIsDropped(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		User("hi").
		Tool(turns.NewToolResultBlock("ghost", "x", "boo")).
		AssistantText("hello").
		Build()
	view := ToUIView(stored)
	require.Len(t, view, 2)
	assert.Equal(t, []string{"user-0", "assistant-2"}, []string{view[0].ID, view[1].ID})
}

func TestToUIView_ResultIsNotOverwrittenByLaterToolTurn(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		Assistant(turns.NewToolCallBlock("c1", "x", nil)).
		Tool(turns.NewToolResultBlock("c1", "x", "first")).
		Tool(turns.NewToolResultBlock("c1", "x", "second")).
		Build()
	view := ToUIView(stored)
	require.Len(t, view, 1)
	assert.Equal(t, "first", view[0].ToolInvocations[0].Result)
}

func TestToUIView_DoesNotMutateInput(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		Assistant(turns.NewToolCallBlock("c1", "x", map[string]any{"a": "b"})).
		Tool(turns.NewToolResultBlock("c1", "x", "r")).
		Build()
	before := turns.CloneAll(stored)
	_ = ToUIView(stored)
	assert.Equal(t, before, stored)
}

func TestReconcileToolResult(t *testing.T) {
	prior := []conversation.Message{
		{ID: "u", Role: turns.RoleUser, Content: "hi"},
		{ID: "a", Role: turns.RoleAssistant, ToolInvocations: []conversation.ToolInvocation{
			{State: conversation.StateCall, ToolCallID: "c1", ToolName: "x"},
			{State: conversation.StateCall, ToolCallID: "c2", ToolName: "y"},
			{State: conversation.StateResult, ToolCallID: "c3", ToolName: "z", Result: "old"},
		}},
	}
	toolTurn := turns.NewToolTurn([]turns.Block{
		turns.NewToolResultBlock("c1", "x", "one"),
		turns.NewToolResultBlock("c1", "x", "shadowed"),
		turns.NewToolResultBlock("c3", "z", "new"),
	})

	out := ReconcileToolResult(toolTurn, prior)
	require.Len(t, out, len(prior))
	assert.Equal(t, prior[0], out[0])

	invs := out[1].ToolInvocations
	assert.Equal(t, conversation.StateResult, invs[0].State)
	assert.Equal(t, "one", invs[0].Result)
	assert.Equal(t, conversation.StateCall, invs[1].State)
	assert.Equal(t, "old", invs[2].Result)

	// input untouched
	assert.Equal(t, conversation.StateCall, prior[1].ToolInvocations[0].State)
	assert.Nil(t, prior[1].ToolInvocations[0].Result)
}

func TestReconcileToolResult_NoMatchIsNotAnError(t *testing.T) {
	prior := []conversation.Message{{ID: "a", Role: turns.RoleAssistant, ToolInvocations: []conversation.ToolInvocation{
		{State: conversation.StateCall, ToolCallID: "c1", ToolName: "x"},
	}}}
	out := ReconcileToolResult(turns.NewToolTurn([]turns.Block{turns.NewToolResultBlock("zz", "x", 1)}), prior)
	assert.Equal(t, prior, out)
	assert.Nil(t, ReconcileToolResult(turns.NewToolTurn(nil), nil))
}

func TestSanitizeGeneratedTurns_DropsEmptyTextTurn(t *testing.T) {
	ts := []turns.Turn{
		{ID: "a", Role: turns.RoleAssistant, Content: turns.Blocks{turns.NewTextBlock("")}},
	}
	assert.Empty(t, SanitizeGeneratedTurns(ts, ""))
}

func TestSanitizeGeneratedTurns_RemovesUnresolvedToolCalls(t *testing.T) {
	ts := []turns.Turn{
		{ID: "a1", Role: turns.RoleAssistant, Content: turns.Blocks{turns.NewToolCallBlock("lost", "x", nil)}},
		{ID: "a2", Role: turns.RoleAssistant, Content: turns.Blocks{
			turns.NewTextBlock("calling"),
			turns.NewToolCallBlock("kept", "x", nil),
			turns.NewToolCallBlock("lost2", "x", nil),
		}},
		{ID: "t1", Role: turns.RoleTool, Content: turns.Blocks{turns.NewToolResultBlock("kept", "x", "ok")}},
	}

	out := SanitizeGeneratedTurns(ts, "")
	require.Len(t, out, 2)
	assert.Equal(t, "a2", out[0].ID)
	assert.Equal(t, turns.Blocks{
		turns.NewTextBlock("calling"),
		turns.NewToolCallBlock("kept", "x", nil),
	}, out[0].Content)
	assert.Equal(t, "t1", out[1].ID)

	// input untouched
	assert.Len(t, ts[1].Content, 3)
}

func TestSanitizeGeneratedTurns_EmptyStringTurnIsKept(t *testing.T) {
	ts := []turns.Turn{
		{ID: "a", Role: turns.RoleAssistant, Content: turns.Text("")},
		{ID: "u", Role: turns.RoleUser, Content: turns.Text("")},
	}
	out := SanitizeGeneratedTurns(ts, "thinking")
	require.Len(t, out, 2)
	assert.Equal(t, turns.Text(""), out[0].Content)
}

func TestSanitizeGeneratedTurns_AppendsReasoning(t *testing.T) {
	ts := []turns.Turn{
		{ID: "a1", Role: turns.RoleAssistant, Content: turns.Blocks{turns.NewTextBlock("")}},
		{ID: "a2", Role: turns.RoleAssistant, Content: turns.Blocks{turns.NewTextBlock("answer")}},
		{ID: "t", Role: turns.RoleTool, Content: turns.Blocks{}},
	}
	out := SanitizeGeneratedTurns(ts, "because")
	require.Len(t, out, 2)
	assert.Equal(t, turns.Blocks{turns.NewReasoningBlock("because")}, out[0].Content)
	assert.Equal(t, turns.Blocks{turns.NewTextBlock("answer"), turns.NewReasoningBlock("because")}, out[1].Content)
}

func TestSanitizeGeneratedTurns_KeepsOtherBlocks(t *testing.T) {
	ts := []turns.Turn{
		{ID: "a", Role: turns.RoleAssistant, Content: turns.Blocks{
			turns.NewReasoningBlock("r"),
			{Kind: "file", Raw: json.RawMessage(`{"type":"file","name":"x"}`)},
		}},
	}
	out := SanitizeGeneratedTurns(ts, "")
	require.Len(t, out, 1)
	assert.Len(t, out[0].Content, 2)
}

func TestSanitizeUIView(t *testing.T) {
	msgs := []conversation.Message{
		{ID: "u", Role: turns.RoleUser, Content: "question"},
		{ID: "empty-user", Role: turns.RoleUser},
		{ID: "a1", Role: turns.RoleAssistant, ToolInvocations: []conversation.ToolInvocation{
			{State: conversation.StateCall, ToolCallID: "p", ToolName: "x"},
		}},
		{ID: "a2", Role: turns.RoleAssistant, Content: "partial", ToolInvocations: []conversation.ToolInvocation{
			{State: conversation.StateCall, ToolCallID: "p", ToolName: "x"},
		}},
		{ID: "a3", Role: turns.RoleAssistant, ToolInvocations: []conversation.ToolInvocation{
			{State: conversation.StateResult, ToolCallID: "r", ToolName: "x", Result: 1},
			{State: conversation.StateCall, ToolCallID: "r", ToolName: "x"},
			{State: conversation.StateCall, ToolCallID: "q", ToolName: "x"},
		}},
		{ID: "a4", Role: turns.RoleAssistant, Reasoning: "only reasoning"},
	}

	out := SanitizeUIView(msgs)
	ids := make([]string, 0, len(out))
	for _, m := range out {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"u", "a2", "a3"}, ids)
	assert.Nil(t, out[1].ToolInvocations)
	require.Len(t, out[2].ToolInvocations, 2)
	assert.True(t, out[2].ToolInvocations[0].Resolved())
	assert.Equal(t, "r", out[2].ToolInvocations[1].ToolCallID)

	assert.Equal(t, out, SanitizeUIView(out))
	assert.Len(t, msgs[4].ToolInvocations, 3)
}

func TestMostRecentUserMessage(t *testing.T) {
	_, ok := MostRecentUserMessage(nil)
	assert.False(t, ok)

	msgs := []conversation.Message{
		{ID: "u1", Role: turns.RoleUser},
		{ID: "a1", Role: turns.RoleAssistant},
		{ID: "u2", Role: turns.RoleUser},
		{ID: "a2", Role: turns.RoleAssistant},
	}
	m, ok := MostRecentUserMessage(msgs)
	require.True(t, ok)
	assert.Equal(t, "u2", m.ID)
}

func TestPendingToolCalls(t *testing.T) {
	stored := turns.NewTranscriptBuilder("chat", t0).
		Assistant(turns.NewToolCallBlock("c1", "x", nil), turns.NewToolCallBlock("c2", "y", nil)).
		Tool(turns.NewToolResultBlock("c1", "x", "ok")).
		Build()
	pending := PendingToolCalls(ToUIView(stored))
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ToolCallID)
}

// naiveUIView folds ReconcileToolResult over the transcript, rescanning every
// prior message per tool turn.
func naiveUIView(stored []turns.Turn) []conversation.Message {
	msgs := []conversation.Message{}
	for _, t := range stored {
		if t.Role == turns.RoleTool {
			if isToolResultTurn(t) {
				msgs = ReconcileToolResult(t, msgs)
			}
			continue
		}
		msgs = append(msgs, toUIMessage(t))
	}
	return msgs
}

func randomTranscript(r *rand.Rand, n int) []turns.Turn {
	tb := turns.NewTranscriptBuilder("chat", t0)
	id := func() string { return fmt.Sprintf("c%d", r.Intn(6)) }
	for i := 0; i < n; i++ {
		switch r.Intn(5) {
		case 0:
			tb.User(fmt.Sprintf("msg %d", i))
		case 1:
			tb.AssistantText([]string{"", "ok"}[r.Intn(2)])
		case 2:
			blocks := []turns.Block{}
			for j := r.Intn(3); j > 0; j-- {
				blocks = append(blocks, turns.NewToolCallBlock(id(), "tool", map[string]any{"i": j}))
			}
			if r.Intn(2) == 0 {
				blocks = append(blocks, turns.NewTextBlock("text"))
			}
			if r.Intn(3) == 0 {
				blocks = append(blocks, turns.NewReasoningBlock("why"))
			}
			tb.Assistant(blocks...)
		default:
			results := []turns.Block{}
			for j := r.Intn(3); j >= 0; j-- {
				results = append(results, turns.NewToolResultBlock(id(), "tool", i*10+j))
			}
			tb.Tool(results...)
		}
	}
	return tb.Build()
}

func TestTranscriptProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		stored := randomTranscript(r, r.Intn(12))

		view := ToUIView(stored)
		assert.LessOrEqual(t, len(view), len(stored))
		assert.Equal(t, naiveUIView(stored), view, "indexed view must match repeated reconciliation")

		once := SanitizeUIView(view)
		assert.Equal(t, once, SanitizeUIView(once), "sanitize must be idempotent")

		resolved := 0
		for _, m := range view {
			for _, ti := range m.ToolInvocations {
				if ti.Resolved() {
					resolved++
				}
			}
		}
		kept := 0
		for _, m := range once {
			for _, ti := range m.ToolInvocations {
				if ti.Resolved() {
					kept++
				}
			}
		}
		assert.Equal(t, resolved, kept, "resolved invocations survive sanitization")
	}
}
