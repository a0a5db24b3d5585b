// Package transcript reconciles stored turns into the UI-facing message view
// and cleans generated turns before they are persisted or displayed.
//
// Every function in this package is pure: inputs are never modified and a
// fresh slice is always returned. Nothing here returns an error; malformed
// input degrades to a shorter or less annotated output.
package transcript

import (
	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// ReconcileToolResult resolves pending invocations in prior against the
// results carried by toolTurn. Every invocation still in the call state whose
// id matches a block of toolTurn moves to the result state with that block's
// result. When several blocks share an id the first one wins. Messages without
// invocations, and invocations without a match, pass through unchanged.
func ReconcileToolResult(toolTurn turns.Turn, prior []conversation.Message) []conversation.Message {
	if prior == nil {
		return nil
	}
	results := toolResultsByID(toolTurn)
	out := make([]conversation.Message, len(prior))
	for i, m := range prior {
		if m.ToolInvocations == nil || len(results) == 0 {
			out[i] = m.Clone()
			continue
		}
		m = m.Clone()
		for j, ti := range m.ToolInvocations {
			if ti.State != conversation.StateCall {
				continue
			}
			if b, ok := results[ti.ToolCallID]; ok {
				m.ToolInvocations[j] = ti.WithResult(b.Result)
			}
		}
		out[i] = m
	}
	return out
}

// toolResultsByID indexes the blocks of a tool turn by tool call id, keeping
// the first block seen for each id.
func toolResultsByID(toolTurn turns.Turn) map[string]turns.Block {
	blocks, ok := turns.BlocksOf(toolTurn.Content)
	if !ok {
		return nil
	}
	ret := make(map[string]turns.Block, len(blocks))
	for _, b := range blocks {
		if b.ToolCallID == "" {
			continue
		}
		if _, seen := ret[b.ToolCallID]; !seen {
			ret[b.ToolCallID] = b
		}
	}
	return ret
}

// isToolResultTurn reports whether t has the shape of a tool turn: structured
// content where every block names the tool call it answers. An empty block
// list qualifies and reconciles nothing.
func isToolResultTurn(t turns.Turn) bool {
	blocks, ok := turns.BlocksOf(t.Content)
	if !ok {
		return false
	}
	for _, b := range blocks {
		if b.ToolCallID == "" {
			return false
		}
	}
	return true
}
