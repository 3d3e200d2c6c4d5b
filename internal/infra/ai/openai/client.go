package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
	"github.com/bryanwahyu/evidence-locker/internal/infra/ai/prompt"
)

const maxTokens = 4096

// Client implements evidence.Provider against the OpenAI chat completion API.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Client) Analyze(ctx context.Context, req evidence.AnalysisRequest) (*evidence.AnalysisResult, error) {
	if len(req.Assets) == 0 {
		return nil, fmt.Errorf("%w: no assets to analyze", evidence.ErrInvalidArgument)
	}
	model := c.Model
	if model == "" {
		model = "gpt-4o"
	}
	chat := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(req)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		chat.MaxCompletionTokens = maxTokens
	} else {
		chat.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %v", evidence.ErrProviderFailure, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", evidence.ErrProviderFailure)
	}

	var result evidence.AnalysisResult
	raw := prompt.CleanJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: decode analysis: %v", evidence.ErrProviderFailure, err)
	}
	result.Normalize()
	return &result, nil
}
