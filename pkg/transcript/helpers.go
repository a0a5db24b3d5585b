package transcript

import (
	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// MostRecentUserMessage returns the last message sent by the user.
func MostRecentUserMessage(msgs []conversation.Message) (conversation.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == turns.RoleUser {
			return msgs[i], true
		}
	}
	return conversation.Message{}, false
}

// PendingToolCalls lists the invocations across msgs that are still waiting
// for a result, in transcript order.
func PendingToolCalls(msgs []conversation.Message) []conversation.ToolInvocation {
	var ret []conversation.ToolInvocation
	for _, m := range msgs {
		for _, ti := range m.ToolInvocations {
			if !ti.Resolved() {
				ret = append(ret, ti)
			}
		}
	}
	return ret
}
