package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider dispatches chat completions through AWS Bedrock. Model
// IDs are expected without the "bedrock/" routing prefix Router strips.
type BedrockProvider struct {
	client *bedrockruntime.Client
}

// NewBedrockProvider wraps an already-configured Bedrock runtime client
// (cmd/pilotd builds it from aws-sdk-go-v2/config.LoadDefaultConfig when
// AWS_REGION is set, keeping AWS credential resolution at the composition
// root like the other two provider constructors).
func NewBedrockProvider(client *bedrockruntime.Client) *BedrockProvider {
	return &BedrockProvider{client: client}
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string                    `json:"anthropic_version"`
	MaxTokens        int                       `json:"max_tokens"`
	Temperature      float64                   `json:"temperature"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
}

type bedrockAnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete implements Provider. Model IDs on Bedrock speak the Anthropic
// Messages wire format with an anthropic_version envelope; other model
// families hosted on Bedrock would need their own envelope and are out
// of scope here.
func (p *BedrockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        int(req.MaxTokens),
		Temperature:      req.Temperature,
		Messages:         []bedrockAnthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal bedrock request body: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return Response{}, fmt.Errorf("bedrock invoke model: %w", err)
	}

	var parsed bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return Response{}, fmt.Errorf("unmarshal bedrock response: %w", err)
	}

	var content string
	for _, block := range parsed.Content {
		content += block.Text
	}

	return Response{
		Content:      content,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}, nil
}
