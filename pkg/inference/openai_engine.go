package inference

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// OpenAIEngine implements Engine against any OpenAI-compatible chat
// completions API. It always streams.
type OpenAIEngine struct {
	client *go_openai.Client
	config *Config
}

var _ Engine = (*OpenAIEngine)(nil)

func NewOpenAIEngine(options ...Option) (*OpenAIEngine, error) {
	config := NewConfig()
	if err := ApplyOptions(config, options...); err != nil {
		return nil, err
	}
	if err := config.Policy.Validate(config.BaseURL); err != nil {
		return nil, errors.Wrap(err, "provider base url")
	}

	clientConfig := go_openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &OpenAIEngine{
		client: go_openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// RunInference streams one completion. Text and reasoning deltas are
// published as they arrive; tool calls are published once the stream ends and
// their arguments are complete.
func (e *OpenAIEngine) RunInference(ctx context.Context, req Request) (Response, error) {
	if req.Model.ProviderModel == "" {
		return Response{}, errors.Errorf("model %q has no provider model", req.Model.ID)
	}

	chatReq := go_openai.ChatCompletionRequest{
		Model:    req.Model.ProviderModel,
		Messages: MessagesFromTurns(req.System, req.Turns),
		Tools:    ToolsForRequest(req.Tools),
		Stream:   true,
	}
	messageID := uuid.NewString()

	log.Debug().
		Str("chat_id", req.ChatID).
		Str("model", chatReq.Model).
		Int("messages", len(chatReq.Messages)).
		Int("tools", len(chatReq.Tools)).
		Msg("OpenAI RunInference started")

	stream, err := e.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		log.Error().Err(err).Str("chat_id", req.ChatID).Msg("OpenAI streaming request failed")
		return Response{}, errors.Wrap(err, "create chat completion stream")
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close stream")
		}
	}()

	var text strings.Builder
	var extractor *models.ReasoningExtractor
	if req.Model.ReasoningTag != "" {
		extractor = models.NewReasoningExtractor(req.Model.ReasoningTag)
	}
	emit := func(visible, reasoning string) {
		if reasoning != "" {
			e.config.publish(ctx, events.NewReasoningDelta(req.ChatID, messageID, reasoning))
		}
		if visible != "" {
			text.WriteString(visible)
			e.config.publish(ctx, events.NewTextDelta(req.ChatID, messageID, visible))
		}
	}

	merger := NewToolCallMerger()
	chunkCount := 0
	for {
		if err := ctx.Err(); err != nil {
			log.Debug().Int("chunks_received", chunkCount).Msg("OpenAI streaming cancelled by context")
			return Response{}, err
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error().Err(err).Int("chunks_received", chunkCount).Msg("OpenAI stream receive failed")
			return Response{}, errors.Wrap(err, "receive chat completion chunk")
		}
		chunkCount++

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta
		if delta.Content != "" {
			if extractor != nil {
				emit(extractor.Feed(delta.Content))
			} else {
				emit(delta.Content, "")
			}
		}
		if len(delta.ToolCalls) > 0 {
			merger.AddToolCalls(delta.ToolCalls)
		}
	}
	var reasoning string
	if extractor != nil {
		emit(extractor.Flush())
		reasoning = extractor.Reasoning()
	}

	var blocks []turns.Block
	if text.Len() > 0 {
		blocks = append(blocks, turns.NewTextBlock(text.String()))
	}
	for _, tc := range merger.GetToolCalls() {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := parseArgs(tc.Function.Arguments)
		blocks = append(blocks, turns.NewToolCallBlock(id, tc.Function.Name, args))
		e.config.publish(ctx, events.NewToolCall(req.ChatID, messageID, id, tc.Function.Name, args))
	}
	if blocks == nil {
		blocks = []turns.Block{}
	}

	log.Debug().
		Str("chat_id", req.ChatID).
		Int("chunks_received", chunkCount).
		Int("text_length", text.Len()).
		Int("reasoning_length", len(reasoning)).
		Int("tool_call_count", merger.Len()).
		Msg("OpenAI RunInference completed")

	return Response{
		Turn: turns.NewAssistantTurn(blocks,
			turns.WithID(messageID),
			turns.WithChatID(req.ChatID),
			turns.WithCreatedAt(time.Now().UTC()),
		),
		Reasoning: reasoning,
	}, nil
}
