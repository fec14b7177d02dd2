package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxErrorBodyBytes bounds how much of a failed response body is quoted in an error
const maxErrorBodyBytes = 512

// OpenAIClient implements ModelClient against any OpenAI-compatible endpoint (chat completions and model listing).
// Authentication is the responsibility of the supplied HTTP client.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewOpenAIClient(httpClient *http.Client, baseURL string) *OpenAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (oc *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (Message, error) {
	body := chatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    []chatMessage{},
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: string(RoleSystem), Content: req.System})
	}
	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	b, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal chat completion request: %w", err)
	}

	respBody, err := oc.do(ctx, http.MethodPost, "/chat/completions", b)
	if err != nil {
		return Message{}, &TransportError{Op: "complete", Err: err}
	}

	choice := gjson.GetBytes(respBody, "choices.0.message")
	if !choice.Exists() {
		return Message{}, &TransportError{Op: "complete", Err: fmt.Errorf("response has no choices: %s", truncate(respBody))}
	}
	return Message{
		Role:    Role(choice.Get("role").String()),
		Content: choice.Get("content").String(),
	}, nil
}

func (oc *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := oc.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, &TransportError{Op: "list models", Err: err}
	}

	ids := []string{}
	for _, id := range gjson.GetBytes(respBody, "data.#.id").Array() {
		ids = append(ids, id.String())
	}
	return ids, nil
}

func (oc *OpenAIClient) do(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, oc.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := oc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, truncate(respBody))
	}
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("%s %s returned invalid JSON: %s", method, path, truncate(respBody))
	}
	return respBody, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBodyBytes {
		return string(b[:maxErrorBodyBytes]) + "..."
	}
	return string(b)
}
