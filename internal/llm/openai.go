package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates a client for the public OpenAI endpoint.
func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is empty")
	}
	return NewOpenAIWithClient(openai.NewClient(apiKey)), nil
}

// NewOpenAIWithClient uses an already configured client.
func NewOpenAIWithClient(client *openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

// Generate sends the parts as a single user message.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: strings.Join(req.Parts, "\n\n")},
		},
	}
	if req.JSON {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := o.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyOutput
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op.
func (o *OpenAI) Close() error { return nil }
