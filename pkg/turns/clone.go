package turns

import (
	"github.com/huandu/go-clone"
)

// Clone returns a deep copy of the Turn suitable for mutation without affecting
// the original. Block slices are reallocated and the arbitrary Args/Result
// payloads are deep-copied.
func (t Turn) Clone() Turn {
	out := t
	if blocks, ok := t.Content.(Blocks); ok && blocks != nil {
		cp := make(Blocks, len(blocks))
		for i, b := range blocks {
			if b.Args != nil {
				b.Args = clone.Clone(b.Args)
			}
			if b.Result != nil {
				b.Result = clone.Clone(b.Result)
			}
			if b.Raw != nil {
				b.Raw = append([]byte(nil), b.Raw...)
			}
			cp[i] = b
		}
		out.Content = cp
	}
	return out
}

// CloneAll deep-copies a transcript.
func CloneAll(ts []Turn) []Turn {
	if ts == nil {
		return nil
	}
	out := make([]Turn, len(ts))
	for i := range ts {
		out[i] = ts[i].Clone()
	}
	return out
}
