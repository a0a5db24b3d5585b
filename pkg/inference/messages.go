package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/colloquy/pkg/tools"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// MessagesFromTurns converts a model-input transcript into chat completion
// messages. Reasoning blocks are never sent back to the provider and each
// tool-result block becomes its own tool message.
func MessagesFromTurns(system string, ts []turns.Turn) []go_openai.ChatCompletionMessage {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(ts)+1)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: system})
	}

	for _, t := range ts {
		if text, ok := turns.TextOf(t.Content); ok {
			if strings.TrimSpace(text) == "" {
				log.Debug().Str("turn_id", t.ID).Str("role", string(t.Role)).Msg("OpenAI request: skipping empty text turn")
				continue
			}
			if t.Role == turns.RoleTool {
				log.Debug().Str("turn_id", t.ID).Msg("OpenAI request: skipping tool turn without tool call id")
				continue
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: string(t.Role), Content: text})
			continue
		}

		blocks, _ := turns.BlocksOf(t.Content)
		if t.Role == turns.RoleTool {
			for _, b := range blocks {
				if b.ToolCallID == "" {
					continue
				}
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:       go_openai.ChatMessageRoleTool,
					Content:    resultString(b.Result),
					Name:       b.ToolName,
					ToolCallID: b.ToolCallID,
				})
			}
			continue
		}

		var sb strings.Builder
		var calls []go_openai.ToolCall
		for _, b := range blocks {
			switch b.Kind {
			case turns.BlockKindText:
				sb.WriteString(b.Text)
			case turns.BlockKindToolCall:
				if t.Role != turns.RoleAssistant {
					continue
				}
				calls = append(calls, go_openai.ToolCall{
					ID:   b.ToolCallID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      b.ToolName,
						Arguments: argsString(b.Args),
					},
				})
			case turns.BlockKindReasoning, turns.BlockKindToolResult:
				continue
			}
		}
		if strings.TrimSpace(sb.String()) == "" && len(calls) == 0 {
			continue
		}
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:      string(t.Role),
			Content:   sb.String(),
			ToolCalls: calls,
		})
	}

	warnUnansweredToolCalls(msgs)
	return msgs
}

// warnUnansweredToolCalls logs assistant tool calls that are not immediately
// followed by their tool messages. Providers reject such requests.
func warnUnansweredToolCalls(msgs []go_openai.ChatCompletionMessage) {
	for i, m := range msgs {
		if len(m.ToolCalls) == 0 {
			continue
		}
		answered := map[string]bool{}
		for j := i + 1; j < len(msgs) && msgs[j].Role == go_openai.ChatMessageRoleTool; j++ {
			answered[msgs[j].ToolCallID] = true
		}
		var missing []string
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				missing = append(missing, tc.ID)
			}
		}
		if len(missing) > 0 {
			log.Warn().
				Int("assistant_idx", i).
				Strs("missing_tool_result_ids", missing).
				Msg("OpenAI request: assistant tool_calls missing immediate tool results")
		}
	}
}

func argsString(args any) string {
	switch v := args.(type) {
	case nil:
		return "{}"
	case string:
		if strings.TrimSpace(v) == "" {
			return "{}"
		}
		return v
	case json.RawMessage:
		if len(v) == 0 {
			return "{}"
		}
		return string(v)
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func resultString(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}

// ToolsForRequest converts tool definitions to provider tool declarations.
func ToolsForRequest(defs []*tools.Definition) []go_openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	ret := make([]go_openai.Tool, 0, len(defs))
	for _, d := range defs {
		params, err := d.ParametersJSON()
		if err != nil {
			log.Warn().Err(err).Str("tool", d.Name).Msg("Skipping tool with unserializable schema")
			continue
		}
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return ret
}

// parseArgs decodes streamed tool arguments. Empty arguments become an empty
// object; undecodable ones are kept as the raw string.
func parseArgs(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Warn().Err(err).Msg("Tool call arguments are not valid JSON")
		return raw
	}
	return args
}
