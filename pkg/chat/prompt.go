package chat

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/go-go-golems/colloquy/pkg/models"
)

// PromptData is what the system prompt template can refer to.
type PromptData struct {
	Now       time.Time
	Model     models.ChatModel
	ToolNames []string
	UserID    string
}

// SystemPrompt is a parsed system prompt template. Templates have the sprig
// function map available.
type SystemPrompt struct {
	tmpl *template.Template
}

func ParseSystemPrompt(text string) (*SystemPrompt, error) {
	tmpl, err := template.New("system").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse system prompt")
	}
	return &SystemPrompt{tmpl: tmpl}, nil
}

func (p *SystemPrompt) Render(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "render system prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}
