package turns

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextOf(t *testing.T) {
	s, ok := TextOf(Text("a"))
	assert.True(t, ok)
	assert.Equal(t, "a", s)

	s, ok = TextOf(nil)
	assert.True(t, ok)
	assert.Equal(t, "", s)

	_, ok = TextOf(Blocks{})
	assert.False(t, ok)
}

func TestAppendBlocks(t *testing.T) {
	orig := NewUserTextTurn("hello")
	appended := AppendBlocks(orig, NewReasoningBlock("r"))
	assert.Equal(t, Blocks{NewTextBlock("hello"), NewReasoningBlock("r")}, appended.Content)
	assert.Equal(t, Text("hello"), orig.Content)

	empty := AppendBlocks(Turn{Role: RoleAssistant, Content: Text("")}, NewTextBlock("x"))
	assert.Equal(t, Blocks{NewTextBlock("x")}, empty.Content)
}

func TestFindBlocksByKind(t *testing.T) {
	turn := NewAssistantTurn([]Block{
		NewTextBlock("a"),
		NewToolCallBlock("1", "x", nil),
		NewReasoningBlock("r"),
		NewToolCallBlock("2", "y", nil),
	})
	calls := FindBlocksByKind(turn, BlockKindToolCall)
	require.Len(t, calls, 2)
	assert.Equal(t, "2", calls[1].ToolCallID)
	assert.Nil(t, FindBlocksByKind(NewUserTextTurn("x"), BlockKindText))
}

func TestNewTurnDefaults(t *testing.T) {
	a := NewUserTextTurn("x")
	b := NewUserTextTurn("x")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewAssistantTurn([]Block{
		NewToolCallBlock("c1", "x", map[string]any{"nested": map[string]any{"k": "v"}}),
	})
	cp := orig.Clone()

	blocks, _ := BlocksOf(cp.Content)
	blocks[0].Args.(map[string]any)["nested"].(map[string]any)["k"] = "changed"
	blocks[0].ToolName = "y"

	origBlocks, _ := BlocksOf(orig.Content)
	assert.Equal(t, "v", origBlocks[0].Args.(map[string]any)["nested"].(map[string]any)["k"])
	assert.Equal(t, "x", origBlocks[0].ToolName)
}

func TestTranscriptBuilder(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	ts := NewTranscriptBuilder("c", start).User("q").AssistantText("a").Tool().Build()
	require.Len(t, ts, 3)
	assert.Equal(t, "user-0", ts[0].ID)
	assert.Equal(t, "tool-2", ts[2].ID)
	assert.Equal(t, start.Add(2*time.Second), ts[2].CreatedAt)
}

func TestFprintTranscript(t *testing.T) {
	var buf bytes.Buffer
	FprintTranscript(&buf, []Turn{
		NewUserTextTurn("hi"),
		NewAssistantTurn([]Block{NewToolCallBlock("c1", "x", map[string]any{"a": 1})}),
		NewToolTurn([]Block{NewToolResultBlock("c1", "x", "ok")}),
		NewAssistantTurn(nil),
	})
	assert.Equal(t, "user: hi\nassistant/tool-call[c1]: x {\"a\":1}\ntool/tool-result[c1]: \"ok\"\nassistant: <no content>\n", buf.String())
}
