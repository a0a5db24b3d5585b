package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/inference"
	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

const maxTitleLength = 80

const titlePrompt = `- you will generate a short title based on the first message a user begins a conversation with
- ensure it is not more than 80 characters long
- the title should be a summary of the user's message
- do not use quotes or colons`

// Titler names a new chat from its first message.
type Titler interface {
	Title(ctx context.Context, firstMessage string) (string, error)
}

// TruncateTitler uses the first line of the message, shortened.
type TruncateTitler struct{}

func (TruncateTitler) Title(_ context.Context, firstMessage string) (string, error) {
	return truncateTitle(firstMessage), nil
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if utf8.RuneCountInString(s) <= maxTitleLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxTitleLength-3])) + "..."
}

// EngineTitler asks the title model for a title and falls back to
// truncation when the model fails or answers with nothing.
type EngineTitler struct {
	Engine inference.Engine
	Model  models.ChatModel
}

func (t EngineTitler) Title(ctx context.Context, firstMessage string) (string, error) {
	resp, err := t.Engine.RunInference(events.WithoutSinks(ctx), inference.Request{
		Model:  t.Model,
		System: titlePrompt,
		Turns:  []turns.Turn{turns.NewUserTextTurn(firstMessage)},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Title generation failed, using message prefix")
		return truncateTitle(firstMessage), nil
	}
	var sb strings.Builder
	for _, b := range turns.FindBlocksByKind(resp.Turn, turns.BlockKindText) {
		sb.WriteString(b.Text)
	}
	text := sb.String()
	if t.Model.ReasoningTag != "" {
		_, text = models.ExtractReasoning(text, t.Model.ReasoningTag)
	}
	title := truncateTitle(strings.Trim(text, "\"' \n"))
	if title == "" {
		return truncateTitle(firstMessage), nil
	}
	return title, nil
}
