package coach

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// ProviderOpenAINative selects the OpenAI SDK backend instead of any-llm-go.
const ProviderOpenAINative = "openai-native"

// OpenAIBackend uses the official OpenAI SDK. It also serves any
// OpenAI-compatible endpoint through a base URL.
type OpenAIBackend struct {
	client oai.Client
	model  string
}

// NewOpenAIBackend creates an OpenAI chat completions backend.
func NewOpenAIBackend(apiKey, model, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIBackend{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string { return ProviderOpenAINative }

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(prompt),
		},
		Temperature: param.NewOpt(0.4),
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
