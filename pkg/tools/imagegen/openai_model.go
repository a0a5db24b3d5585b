package imagegen

import (
	"context"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel renders images through an OpenAI compatible images endpoint.
type OpenAIModel struct {
	client *go_openai.Client
	model  string
}

func NewOpenAIModel(client *go_openai.Client, model string) *OpenAIModel {
	if model == "" {
		model = go_openai.CreateImageModelDallE3
	}
	return &OpenAIModel{client: client, model: model}
}

// sizeFor maps an aspect ratio onto the closest size the endpoint supports.
func sizeFor(aspectRatio string) string {
	switch aspectRatio {
	case "1:1":
		return go_openai.CreateImageSize1024x1024
	case "9:16", "3:4", "10:16", "9:21":
		return go_openai.CreateImageSize1024x1792
	default:
		return go_openai.CreateImageSize1792x1024
	}
}

func (m *OpenAIModel) Generate(ctx context.Context, prompt string, aspectRatio string) (string, error) {
	resp, err := m.client.CreateImage(ctx, go_openai.ImageRequest{
		Prompt:         prompt,
		Model:          m.model,
		N:              1,
		Size:           sizeFor(aspectRatio),
		ResponseFormat: go_openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", errors.New("image response contained no data")
	}
	return resp.Data[0].B64JSON, nil
}
