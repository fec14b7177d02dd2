package ai

import (
	"context"
	"fmt"
)

// systemPreamble identifies the assistant's role to the model on every response
const systemPreamble = "You are a helpful assistant with memory capabilities. "

// ResponseGenerator produces the next assistant message from a bounded context window
type ResponseGenerator interface {
	Generate(ctx context.Context, window []Message) (Message, error)
}

// Summarizer folds a summarization prompt into a new running summary
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// ModelResponseGenerator is a ResponseGenerator backed by a single zero-temperature model call with no tools
type ModelResponseGenerator struct {
	client ModelClient
	model  string
}

func NewModelResponseGenerator(client ModelClient, model string) *ModelResponseGenerator {
	return &ModelResponseGenerator{client: client, model: model}
}

// Generate returns the model's reply unchanged. Checking that the reply is an assistant message is left to the
// caller.
func (g *ModelResponseGenerator) Generate(ctx context.Context, window []Message) (Message, error) {
	reply, err := g.client.Complete(ctx, CompletionRequest{
		Model:       g.model,
		System:      systemPreamble,
		Messages:    window,
		Temperature: 0,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to generate response: %w", err)
	}
	return reply, nil
}

// ModelSummarizer is a Summarizer backed by a single zero-temperature model call
type ModelSummarizer struct {
	client ModelClient
	model  string
}

func NewModelSummarizer(client ModelClient, model string) *ModelSummarizer {
	return &ModelSummarizer{client: client, model: model}
}

// Summarize sends prompt as the only, user-authored message and returns the raw reply text
func (s *ModelSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	reply, err := s.client.Complete(ctx, CompletionRequest{
		Model:       s.model,
		Messages:    []Message{NewUserMessage(prompt)},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	return reply.Content, nil
}
