package turns

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Content is the body of a Turn. It is either Text (legacy/simple turns) or
// Blocks (structured turns). A nil Content behaves like empty Text.
type Content interface {
	isContent()
}

// Text is plain string content.
type Text string

func (Text) isContent() {}

// Blocks is an ordered sequence of content blocks.
type Blocks []Block

func (Blocks) isContent() {}

var (
	_ Content = Text("")
	_ Content = Blocks(nil)
)

type BlockKind string

const (
	BlockKindText       BlockKind = "text"
	BlockKindToolCall   BlockKind = "tool-call"
	BlockKindToolResult BlockKind = "tool-result"
	BlockKindReasoning  BlockKind = "reasoning"
)

// Block is a single tagged fragment of a Turn's content.
//
// Only the fields relevant to Kind are meaningful. ToolCallID and Result are
// also populated for blocks of unknown kind so that loosely shaped tool
// results can still be correlated.
type Block struct {
	Kind       BlockKind
	Text       string
	ToolCallID string
	ToolName   string
	Args       any
	Result     any
	Reasoning  string

	// Raw keeps the original encoding of a block whose kind is not recognized,
	// so it survives a decode/encode cycle unchanged.
	Raw json.RawMessage
}

// IsKnown reports whether the block kind is one of the built-in kinds.
func (b Block) IsKnown() bool {
	switch b.Kind {
	case BlockKindText, BlockKindToolCall, BlockKindToolResult, BlockKindReasoning:
		return true
	default:
		return false
	}
}

// Turn is one conversational unit as stored or as produced by a model.
type Turn struct {
	ID        string
	ChatID    string
	Role      Role
	Content   Content
	CreatedAt time.Time
}

// TextOf returns the string content of c and true, or "" and false when c is
// structured. A nil Content yields "" and true.
func TextOf(c Content) (string, bool) {
	switch v := c.(type) {
	case Text:
		return string(v), true
	case nil:
		return "", true
	default:
		return "", false
	}
}

// BlocksOf returns the blocks of c and true when c is structured.
func BlocksOf(c Content) (Blocks, bool) {
	b, ok := c.(Blocks)
	return b, ok
}

// FindBlocksByKind returns the blocks of the requested kinds in order.
func FindBlocksByKind(t Turn, kinds ...BlockKind) []Block {
	blocks, ok := BlocksOf(t.Content)
	if !ok {
		return nil
	}
	lookup := map[BlockKind]bool{}
	for _, k := range kinds {
		lookup[k] = true
	}
	ret := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if lookup[b.Kind] {
			ret = append(ret, b)
		}
	}
	return ret
}

// AppendBlocks returns a new Turn whose content is the existing blocks followed
// by bs. String content is converted to a leading text block when non-empty.
func AppendBlocks(t Turn, bs ...Block) Turn {
	var existing Blocks
	switch c := t.Content.(type) {
	case Blocks:
		existing = c
	case Text:
		if c != "" {
			existing = Blocks{NewTextBlock(string(c))}
		}
	}
	out := make(Blocks, 0, len(existing)+len(bs))
	out = append(out, existing...)
	out = append(out, bs...)
	t.Content = out
	return t
}
