package turns

import (
	"encoding/json"
	"fmt"
	"io"
)

// FprintTurn prints a turn in a readable form to the provided writer.
// It renders common block kinds similarly to a chat transcript.
func FprintTurn(w io.Writer, t Turn) {
	if text, ok := TextOf(t.Content); ok {
		fmt.Fprintf(w, "%s: %s\n", t.Role, text)
		return
	}
	blocks, _ := BlocksOf(t.Content)
	if len(blocks) == 0 {
		fmt.Fprintf(w, "%s: <no content>\n", t.Role)
		return
	}
	for _, b := range blocks {
		switch b.Kind {
		case BlockKindText:
			fmt.Fprintf(w, "%s: %s\n", t.Role, b.Text)
		case BlockKindReasoning:
			fmt.Fprintf(w, "%s/reasoning: %s\n", t.Role, b.Reasoning)
		case BlockKindToolCall:
			fmt.Fprintf(w, "%s/tool-call[%s]: %s %s\n", t.Role, b.ToolCallID, b.ToolName, compactJSON(b.Args))
		case BlockKindToolResult:
			fmt.Fprintf(w, "%s/tool-result[%s]: %s\n", t.Role, b.ToolCallID, compactJSON(b.Result))
		default:
			fmt.Fprintf(w, "%s/other: %s\n", t.Role, string(b.Raw))
		}
	}
}

// FprintTranscript prints every turn in order.
func FprintTranscript(w io.Writer, ts []Turn) {
	for _, t := range ts {
		FprintTurn(w, t)
	}
}

func compactJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
