package ai

import "context"

// ModelClient is the logical contract of a model provider. Implementations own the transport: HTTP, retries and
// authentication.
type ModelClient interface {
	// Complete sends one request and returns the model's reply. The reply's role is whatever the provider reported.
	Complete(ctx context.Context, req CompletionRequest) (Message, error)
	// ListModels returns the identifiers of the models the provider offers
	ListModels(ctx context.Context) ([]string, error)
}

// CompletionRequest is a single, stateless model call
type CompletionRequest struct {
	Model       string
	System      string // Optional preamble sent ahead of Messages
	Messages    []Message
	Temperature float64
}
