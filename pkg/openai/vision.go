package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// IVision is the fallback deep-analysis model used when Gemini is down or
// unconfigured. Any OpenAI-compatible endpoint works, so a self-hosted VLM
// can be pointed at via OPENAI_BASE_URL.
type IVision interface {
	AnalyzeImage(ctx context.Context, base64Image string, prompt string) (string, error)
}

type visionService struct {
	client *openai.Client
	model  string
}

func NewVision() IVision {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_VISION_MODEL")

	if model == "" {
		model = openai.GPT4o
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	return &visionService{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (v *visionService) AnalyzeImage(ctx context.Context, base64Image string, prompt string) (string, error) {
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: 300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64Image),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from vision model")
	}

	return resp.Choices[0].Message.Content, nil
}
