package ai

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/oauth2"

	"github.com/cchalm/memochat/internal/config"
	"github.com/cchalm/memochat/internal/transport"
)

// NewModelClient builds the client for the provider named in settings. Both providers send requests through the
// rate-limited transport.
func NewModelClient(settings config.Settings, maxOutputTokens int64, logger *slog.Logger) (ModelClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rateLimited := transport.WithRateLimiting(nil).WithLogger(logger)

	switch settings.Provider {
	case config.ProviderAnthropic:
		opts := []option.RequestOption{
			option.WithHTTPClient(&http.Client{Transport: rateLimited}),
			option.WithAPIKey(settings.APIKey),
			option.WithMaxRetries(5),
		}
		if settings.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(settings.BaseURL))
		}
		return NewAnthropicClient(anthropic.NewClient(opts...), maxOutputTokens, logger), nil
	case config.ProviderOpenAI:
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("provider %q requires a base URL", settings.Provider)
		}
		return NewOpenAIClient(newBearerHTTPClient(settings.APIKey, rateLimited), settings.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", settings.Provider)
	}
}

// newBearerHTTPClient returns a client that authenticates every request with the API key as a bearer token
func newBearerHTTPClient(apiKey string, base http.RoundTripper) *http.Client {
	tokenSource := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiKey},
	)
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: tokenSource,
			Base:   base,
		},
	}
}
