package inference

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/tools"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// DefaultMaxSteps caps the number of model completions in one generation.
const DefaultMaxSteps = 5

// Loop runs inference, executes requested tools and feeds their results back
// until the model stops calling tools or the step cap is reached.
type Loop struct {
	engine   Engine
	registry *tools.Registry
	maxSteps int
	now      func() time.Time
}

type LoopOption func(*Loop)

func WithMaxSteps(n int) LoopOption {
	return func(l *Loop) { l.maxSteps = n }
}

// WithClock replaces the time source used to stamp generated turns.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

func NewLoop(engine Engine, registry *tools.Registry, opts ...LoopOption) *Loop {
	l := &Loop{
		engine:   engine,
		registry: registry,
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Result holds what one generation produced. Turns are the assistant and tool
// turns in order, stamped with strictly increasing CreatedAt values later than
// any input turn. Reasoning is the last non-empty reasoning captured.
type Result struct {
	Turns     []turns.Turn
	Reasoning string
	Steps     int
}

// Run executes the generation. req.Tools is ignored in favor of the loop's
// registry. Hitting the step cap with tool calls still pending is not an
// error; the unresolved calls are left for sanitization.
func (l *Loop) Run(ctx context.Context, req Request) (Result, error) {
	if l == nil || l.engine == nil {
		return Result{}, errors.New("inference loop has no engine")
	}
	maxSteps := l.maxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	var last time.Time
	for _, t := range req.Turns {
		if t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
	}
	stamp := func(t *turns.Turn) {
		ts := l.now().UTC().Truncate(time.Millisecond)
		if !ts.After(last) {
			ts = last.Add(time.Millisecond)
		}
		t.CreatedAt = ts
		t.ChatID = req.ChatID
		last = ts
	}

	if l.registry != nil {
		req.Tools = l.registry.List()
	} else {
		req.Tools = nil
	}
	// engines get their own copy of the caller's transcript
	history := turns.CloneAll(req.Turns)

	var res Result
	for step := 0; step < maxSteps; step++ {
		res.Steps = step + 1
		log.Debug().Str("chat_id", req.ChatID).Int("step", res.Steps).Msg("Inference loop step")

		req.Turns = history
		resp, err := l.engine.RunInference(ctx, req)
		if err != nil {
			return res, err
		}
		assistant := resp.Turn
		assistant.Role = turns.RoleAssistant
		stamp(&assistant)
		res.Turns = append(res.Turns, assistant)
		history = append(history, assistant)
		if resp.Reasoning != "" {
			res.Reasoning = resp.Reasoning
		}

		calls := turns.FindBlocksByKind(assistant, turns.BlockKindToolCall)
		if len(calls) == 0 {
			return res, nil
		}

		toolTurn := turns.NewToolTurn(l.executeTools(ctx, req.ChatID, calls))
		stamp(&toolTurn)
		res.Turns = append(res.Turns, toolTurn)
		history = append(history, toolTurn)
	}

	log.Warn().Str("chat_id", req.ChatID).Int("max_steps", maxSteps).Msg("Inference loop reached maximum steps")
	return res, nil
}

// executeTools runs each call in order. Failures are reported back to the
// model as an error result rather than aborting the generation.
func (l *Loop) executeTools(ctx context.Context, chatID string, calls []turns.Block) []turns.Block {
	results := make([]turns.Block, 0, len(calls))
	for _, call := range calls {
		result := l.executeTool(ctx, call)
		results = append(results, turns.NewToolResultBlock(call.ToolCallID, call.ToolName, result))
		events.PublishToContext(ctx, events.NewToolResult(chatID, call.ToolCallID, call.ToolName, result))
	}
	return results
}

func (l *Loop) executeTool(ctx context.Context, call turns.Block) any {
	if l.registry == nil {
		return toolError(errors.Wrap(tools.ErrToolNotFound, call.ToolName))
	}
	def, err := l.registry.Get(call.ToolName)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.ToolName).Str("tool_call_id", call.ToolCallID).Msg("Model called unknown tool")
		return toolError(err)
	}
	args, err := json.Marshal(call.Args)
	if err != nil {
		return toolError(errors.Wrap(err, "encode tool arguments"))
	}
	if s, ok := call.Args.(string); ok {
		args = []byte(s)
	}

	start := time.Now()
	result, err := def.Execute(ctx, args)
	if err != nil {
		log.Error().Err(err).Str("tool", call.ToolName).Str("tool_call_id", call.ToolCallID).Msg("Tool execution failed")
		return toolError(err)
	}
	log.Debug().Str("tool", call.ToolName).Dur("duration", time.Since(start)).Msg("Tool executed")
	return normalizeResult(result)
}

func toolError(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

// normalizeResult turns typed tool outputs into plain JSON values so the
// stored transcript holds the same shape it will be decoded into.
func normalizeResult(result any) any {
	b, err := json.Marshal(result)
	if err != nil {
		return result
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return result
	}
	return out
}
