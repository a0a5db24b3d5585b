package models

import "strings"

// ReasoningExtractor separates reasoning wrapped in <tag>...</tag> from the
// visible text of a streamed completion. Tags may be split across chunks.
type ReasoningExtractor struct {
	openTag  string
	closeTag string

	inside    bool
	pending   string
	text      strings.Builder
	reasoning strings.Builder
	sections  int
}

func NewReasoningExtractor(tag string) *ReasoningExtractor {
	return &ReasoningExtractor{
		openTag:  "<" + tag + ">",
		closeTag: "</" + tag + ">",
	}
}

// Feed consumes chunk and returns the text and reasoning that can be emitted
// now. A possible partial tag at the end of the chunk is held back until the
// next call.
func (e *ReasoningExtractor) Feed(chunk string) (text string, reasoning string) {
	e.pending += chunk
	var tb, rb strings.Builder
	for {
		tag := e.openTag
		if e.inside {
			tag = e.closeTag
		}
		if idx := strings.Index(e.pending, tag); idx >= 0 {
			e.emit(e.pending[:idx], &tb, &rb)
			e.pending = e.pending[idx+len(tag):]
			e.toggle(&rb)
			continue
		}
		keep := partialSuffix(e.pending, tag)
		e.emit(e.pending[:len(e.pending)-keep], &tb, &rb)
		e.pending = e.pending[len(e.pending)-keep:]
		return tb.String(), rb.String()
	}
}

// Flush emits whatever is held back. Call it once the stream has ended.
func (e *ReasoningExtractor) Flush() (text string, reasoning string) {
	var tb, rb strings.Builder
	e.emit(e.pending, &tb, &rb)
	e.pending = ""
	return tb.String(), rb.String()
}

func (e *ReasoningExtractor) toggle(rb *strings.Builder) {
	e.inside = !e.inside
	if e.inside {
		if e.sections > 0 {
			e.reasoning.WriteString("\n")
			rb.WriteString("\n")
		}
		e.sections++
	}
}

func (e *ReasoningExtractor) emit(s string, tb, rb *strings.Builder) {
	if s == "" {
		return
	}
	if e.inside {
		e.reasoning.WriteString(s)
		rb.WriteString(s)
		return
	}
	e.text.WriteString(s)
	tb.WriteString(s)
}

// Text is all visible text emitted so far.
func (e *ReasoningExtractor) Text() string { return e.text.String() }

// Reasoning is all reasoning emitted so far, sections joined by newlines.
func (e *ReasoningExtractor) Reasoning() string { return e.reasoning.String() }

// partialSuffix returns the length of the longest suffix of s that is a proper
// prefix of tag.
func partialSuffix(s, tag string) int {
	limit := len(tag) - 1
	if limit > len(s) {
		limit = len(s)
	}
	for n := limit; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}

// ExtractReasoning splits a complete completion into reasoning and visible text.
func ExtractReasoning(completion, tag string) (reasoning string, text string) {
	e := NewReasoningExtractor(tag)
	e.Feed(completion)
	e.Flush()
	return e.Reasoning(), e.Text()
}
