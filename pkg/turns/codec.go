package turns

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// blockWire is the union of all fields any block kind may carry on the wire.
type blockWire struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Args       any    `json:"args"`
	Result     any    `json:"result"`
	Reasoning  string `json:"reasoning"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BlockKindText:
		return json.Marshal(struct {
			Type BlockKind `json:"type"`
			Text string    `json:"text"`
		}{b.Kind, b.Text})
	case BlockKindToolCall:
		return json.Marshal(struct {
			Type       BlockKind `json:"type"`
			ToolCallID string    `json:"toolCallId"`
			ToolName   string    `json:"toolName"`
			Args       any       `json:"args"`
		}{b.Kind, b.ToolCallID, b.ToolName, b.Args})
	case BlockKindToolResult:
		return json.Marshal(struct {
			Type       BlockKind `json:"type"`
			ToolCallID string    `json:"toolCallId"`
			ToolName   string    `json:"toolName,omitempty"`
			Result     any       `json:"result"`
		}{b.Kind, b.ToolCallID, b.ToolName, b.Result})
	case BlockKindReasoning:
		return json.Marshal(struct {
			Type      BlockKind `json:"type"`
			Reasoning string    `json:"reasoning"`
		}{b.Kind, b.Reasoning})
	}
	if len(b.Raw) > 0 {
		return b.Raw, nil
	}
	return json.Marshal(struct {
		Type       BlockKind `json:"type,omitempty"`
		ToolCallID string    `json:"toolCallId,omitempty"`
		Result     any       `json:"result,omitempty"`
	}{b.Kind, b.ToolCallID, b.Result})
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = Block{
		Kind:       BlockKind(w.Type),
		Text:       w.Text,
		ToolCallID: w.ToolCallID,
		ToolName:   w.ToolName,
		Args:       w.Args,
		Result:     w.Result,
		Reasoning:  w.Reasoning,
	}
	if !b.IsKnown() {
		b.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// EncodeContent serializes c to its stored JSON form: a JSON string for Text,
// an array for Blocks and null for nil.
func EncodeContent(c Content) ([]byte, error) {
	switch v := c.(type) {
	case Text:
		return json.Marshal(string(v))
	case Blocks:
		if v == nil {
			return []byte("[]"), nil
		}
		return json.Marshal([]Block(v))
	case nil:
		return []byte("null"), nil
	default:
		return nil, errors.Errorf("unsupported content type %T", c)
	}
}

// DecodeContent parses stored JSON content. Strings become Text and arrays
// become Blocks. Array elements that are not objects are kept as opaque
// blocks. Any other JSON value decodes to nil content. Only syntactically
// invalid JSON is an error.
func DecodeContent(raw []byte) (Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("invalid content json")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.Wrap(err, "decode string content")
		}
		return Text(s), nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, errors.Wrap(err, "decode block content")
		}
		blocks := make(Blocks, 0, len(elems))
		for _, elem := range elems {
			var b Block
			if err := json.Unmarshal(elem, &b); err != nil {
				b = Block{Raw: append(json.RawMessage(nil), elem...)}
			}
			blocks = append(blocks, b)
		}
		return blocks, nil
	default:
		return nil, nil
	}
}

type turnWire struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId,omitempty"`
	Role      Role            `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
}

func (t Turn) MarshalJSON() ([]byte, error) {
	content, err := EncodeContent(t.Content)
	if err != nil {
		return nil, err
	}
	w := turnWire{ID: t.ID, ChatID: t.ChatID, Role: t.Role, Content: content}
	if !t.CreatedAt.IsZero() {
		createdAt := t.CreatedAt
		w.CreatedAt = &createdAt
	}
	return json.Marshal(w)
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var w turnWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content, err := DecodeContent(w.Content)
	if err != nil {
		return errors.Wrapf(err, "turn %s", w.ID)
	}
	*t = Turn{ID: w.ID, ChatID: w.ChatID, Role: w.Role, Content: content}
	if w.CreatedAt != nil {
		t.CreatedAt = *w.CreatedAt
	}
	return nil
}
