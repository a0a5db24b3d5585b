// Package imagegen provides the generateImage tool: it renders a prompt with
// an image model and publishes the result on Imgur.
package imagegen

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/tools"
)

const ToolName = "generateImage"

const DefaultAspectRatio = "16:9"

var aspectRatios = map[string]bool{
	"1:1": true, "16:9": true, "9:16": true, "4:3": true, "3:4": true,
	"16:10": true, "10:16": true, "21:9": true, "9:21": true,
}

type Input struct {
	Prompt      string `json:"prompt" jsonschema:"required" jsonschema_description:"This is the prompt the image generation ai uses, an diffusion model optimized prompt"`
	AspectRatio string `json:"aspectRatio,omitempty" jsonschema:"enum=1:1,enum=16:9,enum=9:16,enum=4:3,enum=3:4,enum=16:10,enum=10:16,enum=21:9,enum=9:21,default=16:9" jsonschema_description:"This is the resolution the image generation ai uses"`
}

type Output struct {
	ImageURL string `json:"imageUrl"`
}

// ImageModel renders a prompt and returns the image as base64, optionally
// prefixed with a data URL header.
type ImageModel interface {
	Generate(ctx context.Context, prompt string, aspectRatio string) (string, error)
}

// Uploader publishes a base64 image and returns its public link.
type Uploader interface {
	Upload(ctx context.Context, base64Image string, prompt string) (string, error)
}

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// StripDataURLPrefix removes a leading "data:image/<type>;base64," header.
func StripDataURLPrefix(s string) string {
	return dataURLPrefix.ReplaceAllString(s, "")
}

type Generator struct {
	model    ImageModel
	uploader Uploader
}

func NewGenerator(model ImageModel, uploader Uploader) *Generator {
	return &Generator{model: model, uploader: uploader}
}

func (g *Generator) Generate(ctx context.Context, in Input) (Output, error) {
	if in.Prompt == "" {
		return Output{}, errors.New("prompt must not be empty")
	}
	if in.AspectRatio == "" {
		in.AspectRatio = DefaultAspectRatio
	}
	if !aspectRatios[in.AspectRatio] {
		return Output{}, errors.Errorf("unsupported aspect ratio %q", in.AspectRatio)
	}

	image, err := g.model.Generate(ctx, in.Prompt, in.AspectRatio)
	if err != nil {
		return Output{}, errors.Wrap(err, "generate image")
	}
	link, err := g.uploader.Upload(ctx, StripDataURLPrefix(image), in.Prompt)
	if err != nil {
		return Output{}, errors.Wrap(err, "upload image")
	}
	log.Debug().Str("aspect_ratio", in.AspectRatio).Str("url", link).Msg("image generated")
	return Output{ImageURL: link}, nil
}

// Tool exposes the generator as a model-callable tool.
func (g *Generator) Tool() (*tools.Definition, error) {
	return tools.NewTool(ToolName, "Generates an image, with a given prompt, and resolution. this returns a url", g.Generate)
}
