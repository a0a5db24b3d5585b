package inference

import (
	"sort"

	go_openai "github.com/sashabaranov/go-openai"
)

// ToolCallMerger reassembles tool calls that arrive in pieces over a stream.
// Deltas are keyed by their index; name and argument fragments concatenate.
type ToolCallMerger struct {
	toolCalls map[int]go_openai.ToolCall
}

func NewToolCallMerger() *ToolCallMerger {
	return &ToolCallMerger{
		toolCalls: make(map[int]go_openai.ToolCall),
	}
}

func (tcm *ToolCallMerger) AddToolCalls(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		existing, found := tcm.toolCalls[index]
		if !found {
			tcm.toolCalls[index] = call
			continue
		}
		if existing.ID == "" {
			existing.ID = call.ID
		}
		if existing.Type == "" {
			existing.Type = call.Type
		}
		existing.Function.Name += call.Function.Name
		existing.Function.Arguments += call.Function.Arguments
		tcm.toolCalls[index] = existing
	}
}

// GetToolCalls returns the merged calls ordered by stream index.
func (tcm *ToolCallMerger) GetToolCalls() []go_openai.ToolCall {
	indices := make([]int, 0, len(tcm.toolCalls))
	for i := range tcm.toolCalls {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	result := make([]go_openai.ToolCall, 0, len(indices))
	for _, i := range indices {
		result = append(result, tcm.toolCalls[i])
	}
	return result
}

func (tcm *ToolCallMerger) Len() int {
	return len(tcm.toolCalls)
}
