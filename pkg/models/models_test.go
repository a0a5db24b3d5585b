package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry(nil)

	sel := r.Selectable()
	require.Len(t, sel, 3)
	assert.Equal(t, []string{ChatModelSmall, ChatModelLarge, ChatModelReasoning}, []string{sel[0].ID, sel[1].ID, sel[2].ID})

	m, ok := r.Get(ChatModelReasoning)
	require.True(t, ok)
	assert.Equal(t, "deepseek-r1-distill-llama-70b", m.ProviderModel)
	assert.Equal(t, "think", m.ReasoningTag)

	assert.Equal(t, DefaultChatModel, r.Resolve("").ID)
	assert.Equal(t, DefaultChatModel, r.Resolve("no-such-model").ID)
	assert.Equal(t, DefaultChatModel, r.Resolve(TitleModel).ID, "internal models are not user selectable")
	assert.Equal(t, ChatModelLarge, r.Resolve(ChatModelLarge).ID)
	assert.Len(t, r.IDs(), 5)
}

func TestRegistryOverrides(t *testing.T) {
	r := NewRegistry(map[string]string{ChatModelSmall: "llama-3.1-8b-instant", TitleModel: ""})
	m, _ := r.Get(ChatModelSmall)
	assert.Equal(t, "llama-3.1-8b-instant", m.ProviderModel)
	m, _ = r.Get(TitleModel)
	assert.Equal(t, "llama-3.3-70b-versatile", m.ProviderModel)

	r.Register(ChatModel{ID: "custom", ProviderModel: "x", Selectable: true})
	assert.Len(t, r.Selectable(), 4)
}

func TestExtractReasoning(t *testing.T) {
	reasoning, text := ExtractReasoning("<think>step one</think>The answer is 4.", "think")
	assert.Equal(t, "step one", reasoning)
	assert.Equal(t, "The answer is 4.", text)

	reasoning, text = ExtractReasoning("plain answer", "think")
	assert.Empty(t, reasoning)
	assert.Equal(t, "plain answer", text)

	reasoning, text = ExtractReasoning("<think>a</think>x<think>b</think>y", "think")
	assert.Equal(t, "a\nb", reasoning)
	assert.Equal(t, "xy", text)
}

func TestReasoningExtractorSplitTags(t *testing.T) {
	input := "<think>weighing options</think>Go with B. 1 < 2 is true."
	for size := 1; size <= len(input); size++ {
		e := NewReasoningExtractor("think")
		var text, reasoning strings.Builder
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			tx, rx := e.Feed(input[i:end])
			text.WriteString(tx)
			reasoning.WriteString(rx)
		}
		tx, rx := e.Flush()
		text.WriteString(tx)
		reasoning.WriteString(rx)

		assert.Equal(t, "weighing options", reasoning.String(), "chunk size %d", size)
		assert.Equal(t, "Go with B. 1 < 2 is true.", text.String(), "chunk size %d", size)
		assert.Equal(t, text.String(), e.Text())
		assert.Equal(t, reasoning.String(), e.Reasoning())
	}
}

func TestReasoningExtractorUnclosedTag(t *testing.T) {
	e := NewReasoningExtractor("think")
	_, r1 := e.Feed("<think>still going")
	_, r2 := e.Flush()
	assert.Equal(t, "still going", r1+r2)
	assert.Empty(t, e.Text())
}
