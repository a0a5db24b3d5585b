package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/turns"
)

func TestWithResultCopies(t *testing.T) {
	call := ToolInvocation{State: StateCall, ToolCallID: "c1", ToolName: "x", Args: map[string]any{}}
	done := call.WithResult("42")

	assert.False(t, call.Resolved())
	assert.True(t, done.Resolved())
	assert.Equal(t, "42", done.Result)
	assert.Nil(t, call.Result)
}

func TestMessageJSON(t *testing.T) {
	m := Message{
		ID:   "a1",
		Role: turns.RoleAssistant,
		ToolInvocations: []ToolInvocation{
			{State: StateCall, ToolCallID: "c1", ToolName: "x", Args: map[string]any{}},
		},
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a1","role":"assistant","content":"","toolInvocations":[{"state":"call","toolCallId":"c1","toolName":"x","args":{}}]}`, string(b))

	plain, err := json.Marshal(Message{ID: "u", Role: turns.RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u","role":"user","content":"hi"}`, string(plain))
}

func TestCloneDetachesInvocations(t *testing.T) {
	m := Message{ID: "a", ToolInvocations: []ToolInvocation{{State: StateCall, ToolCallID: "c"}}}
	cp := m.Clone()
	cp.ToolInvocations[0] = cp.ToolInvocations[0].WithResult(1)
	assert.Equal(t, StateCall, m.ToolInvocations[0].State)
	assert.Nil(t, Message{}.Clone().ToolInvocations)
}

func TestView(t *testing.T) {
	m := Message{
		Role:      turns.RoleAssistant,
		Content:   "done\n",
		Reasoning: "thought",
		ToolInvocations: []ToolInvocation{
			{State: StateResult, ToolCallID: "c1", ToolName: "x", Args: map[string]any{"a": 1}, Result: "ok"},
		},
	}
	assert.Equal(t, "[assistant]: done\n  (reasoning) thought\n  ToolInvocation{ID: c1, Name: x, Args: {\"a\":1}, Result: \"ok\"}", m.View())
}

func TestGetSinglePrompt(t *testing.T) {
	assert.Equal(t, "", Conversation{}.GetSinglePrompt())
	assert.Equal(t, "only", Conversation{{Content: "only"}}.GetSinglePrompt())
	assert.Equal(t, "[user]: a\n[assistant]: b\n", Conversation{
		{Role: turns.RoleUser, Content: "a"},
		{Role: turns.RoleAssistant, Content: "b"},
	}.GetSinglePrompt())
}
