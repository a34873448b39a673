package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider dispatches chat completions to any OpenAI-compatible
// endpoint: OpenAI itself, Azure OpenAI, or DeepSeek, by pointing
// BaseURL at the right host.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider against the default api.openai.com
// endpoint.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// NewOpenAICompatibleProvider builds a provider against a custom base
// URL — Azure OpenAI deployments and DeepSeek both speak the OpenAI chat
// completions wire format behind their own hosts.
func NewOpenAICompatibleProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   int(req.MaxTokens),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("openai returned no choices")
	}

	return Response{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
