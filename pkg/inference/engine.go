// Package inference talks to the model provider. An Engine runs a single
// completion over a transcript; Loop repeats it while the model keeps asking
// for tools.
package inference

import (
	"context"

	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/tools"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// Request is the input of one completion.
type Request struct {
	// ChatID is carried into published events.
	ChatID string
	Model  models.ChatModel
	System string
	// Turns is the model-input transcript, oldest first.
	Turns []turns.Turn
	Tools []*tools.Definition
}

// Response holds the generated assistant turn. Its content is a block list
// with the visible text followed by any tool calls. Reasoning is returned
// separately and never appears in Turn.
type Response struct {
	Turn      turns.Turn
	Reasoning string
}

// Engine represents an AI inference engine. Engines publish streaming events
// to the sinks they were configured with and to the sinks carried in ctx.
type Engine interface {
	RunInference(ctx context.Context, req Request) (Response, error)
}
