package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicClient implements ModelClient on top of the Anthropic messages API
type AnthropicClient struct {
	client          anthropic.Client
	maxOutputTokens int64
	logger          *slog.Logger
}

func NewAnthropicClient(client anthropic.Client, maxOutputTokens int64, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AnthropicClient{
		client:          client,
		maxOutputTokens: maxOutputTokens,
		logger:          logger,
	}
}

// Complete sends the request as a streamed message and accumulates the stream into a single reply
func (ac *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (Message, error) {
	params := ac.messageParams(req)

	stream := ac.client.Messages.NewStreaming(ctx, params)
	response := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		err := response.Accumulate(event)
		if err != nil {
			return Message{}, &TransportError{Op: "complete", Err: fmt.Errorf("failed to accumulate response content stream: %w", err)}
		}
	}
	if stream.Err() != nil {
		return Message{}, &TransportError{Op: "complete", Err: fmt.Errorf("failed to stream response: %w", stream.Err())}
	}
	if response.StopReason == "" {
		b, err := json.Marshal(response)
		if err != nil {
			ac.logger.Warn("failed to marshal incomplete message for inspection", "error", err)
		}
		return Message{}, &TransportError{Op: "complete", Err: fmt.Errorf("incomplete message: %s", string(b))}
	}

	ac.logger.Debug("anthropic token usage",
		"model", req.Model,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
	)

	return fromAnthropicMessage(response), nil
}

// ListModels pages through every model visible to the API key
func (ac *AnthropicClient) ListModels(ctx context.Context) ([]string, error) {
	pager := ac.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	ids := []string{}
	for pager.Next() {
		ids = append(ids, pager.Current().ID)
	}
	if err := pager.Err(); err != nil {
		return nil, &TransportError{Op: "list models", Err: err}
	}
	return ids, nil
}

// messageParams converts a request into Anthropic parameters. The messages API has no system role, so system
// messages from the window are folded into the system prompt after the request's own preamble.
func (ac *AnthropicClient) messageParams(req CompletionRequest) anthropic.MessageNewParams {
	system := []anthropic.TextBlockParam{}
	if req.System != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.System})
	}

	messages := []anthropic.MessageParam{}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   ac.maxOutputTokens,
		System:      system,
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
}

func fromAnthropicMessage(response anthropic.Message) Message {
	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Message{
		Role:    Role(response.Role),
		Content: text.String(),
	}
}
