package inference

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend runs inference against the OpenAI API.
type OpenAIBackend struct {
	Model  string
	apiKey string
	client *openai.Client
}

// NewOpenAIBackend creates a new OpenAI backend reading the key from the
// given environment variable.
func NewOpenAIBackend(model, apiKeyEnv string) *OpenAIBackend {
	return &OpenAIBackend{
		Model:  model,
		apiKey: os.Getenv(apiKeyEnv),
	}
}

// Init verifies the API key is present and the API is reachable.
func (o *OpenAIBackend) Init(ctx context.Context) error {
	if o.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}
	o.client = openai.NewClient(o.apiKey)

	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI not reachable: %w", err)
	}
	return nil
}

// Ask sends the question and context to OpenAI and parses the answer.
func (o *OpenAIBackend) Ask(ctx context.Context, question, contextText string) (Answer, error) {
	if o.client == nil {
		return Answer{}, fmt.Errorf("OpenAI backend not initialized")
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildAskPrompt(question, contextText)},
		},
		MaxTokens:   256,
		Temperature: 0.1,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, fmt.Errorf("no choices in OpenAI response")
	}

	return parseAnswer(resp.Choices[0].Message.Content), nil
}

// Ping issues a model-list request as a cheap liveness probe.
func (o *OpenAIBackend) Ping(ctx context.Context) error {
	if o.client == nil {
		return fmt.Errorf("OpenAI backend not initialized")
	}
	_, err := o.client.ListModels(ctx)
	return err
}

// Close is a no-op; the OpenAI client holds no persistent resources.
func (o *OpenAIBackend) Close() {}
