//go:build e2e

package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cchalm/memochat/internal/checkpoint"
	"github.com/cchalm/memochat/internal/config"
	"github.com/cchalm/memochat/internal/conversation"
)

// TestConfig holds configuration for end-to-end tests
type TestConfig struct {
	Settings   config.Settings
	MaxTokens  int64
	Iterations int
	Timeout    time.Duration
}

// LoadTestConfig loads test configuration from environment variables
func LoadTestConfig() TestConfig {
	cfg := TestConfig{
		Settings: config.Settings{
			Provider: config.ProviderAnthropic,
			Model:    "claude-sonnet-4-0",
		},
		MaxTokens:  1024,
		Iterations: 3,
		Timeout:    300 * time.Second,
	}

	if provider := os.Getenv("E2E_PROVIDER"); provider != "" {
		cfg.Settings.Provider = provider
	}
	if model := os.Getenv("E2E_MODEL"); model != "" {
		cfg.Settings.Model = model
	}
	cfg.Settings.BaseURL = os.Getenv("E2E_BASE_URL")

	if tokens := os.Getenv("E2E_MAX_TOKENS"); tokens != "" {
		if val, err := strconv.ParseInt(tokens, 10, 64); err == nil {
			cfg.MaxTokens = val
		}
	}

	if iterations := os.Getenv("E2E_ITERATIONS"); iterations != "" {
		if val, err := strconv.Atoi(iterations); err == nil {
			cfg.Iterations = val
		}
	}

	if timeout := os.Getenv("E2E_TIMEOUT"); timeout != "" {
		if val, err := strconv.Atoi(timeout); err == nil {
			cfg.Timeout = time.Duration(val) * time.Second
		}
	}

	cfg.Settings.APIKey = os.Getenv("E2E_API_KEY")
	if cfg.Settings.APIKey == "" && cfg.Settings.Provider == config.ProviderAnthropic {
		cfg.Settings.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return cfg
}

// TestHarness provides utilities for end-to-end testing
type TestHarness struct {
	t      *testing.T
	config TestConfig
}

// NewTestHarness creates a new test harness
func NewTestHarness(t *testing.T) *TestHarness {
	cfg := LoadTestConfig()

	require.True(t, cfg.Settings.Configured(),
		"E2E_API_KEY (or ANTHROPIC_API_KEY), E2E_MODEL and, for openai, E2E_BASE_URL are required for e2e tests")

	return &TestHarness{
		t:      t,
		config: cfg,
	}
}

// Config returns the test configuration
func (h *TestHarness) Config() TestConfig {
	return h.config
}

// NewService creates a configured conversation service over a fresh in-memory store
func (h *TestHarness) NewService(retention conversation.Retention) *conversation.Service {
	h.t.Helper()

	svc := conversation.NewService(checkpoint.NewMemoryStore(), conversation.ServiceOptions{
		Retention:       retention,
		MaxOutputTokens: h.config.MaxTokens,
	})
	require.NoError(h.t, svc.Configure(h.config.Settings))
	return svc
}

// RunIterations runs a test function multiple times and reports results
func (h *TestHarness) RunIterations(testName string, testFunc func(iteration int) error) {
	h.t.Helper()

	successCount := 0
	var lastError error

	for i := 0; i < h.config.Iterations; i++ {
		h.t.Logf("Running iteration %d/%d of %s", i+1, h.config.Iterations, testName)

		err := testFunc(i)
		if err != nil {
			h.t.Logf("Iteration %d failed: %v", i+1, err)
			lastError = err
		} else {
			successCount++
			h.t.Logf("Iteration %d succeeded", i+1)
		}
	}

	h.t.Logf("Test %s: %d/%d iterations succeeded", testName, successCount, h.config.Iterations)

	// Require at least 2/3 success rate for tests to pass
	minSuccessCount := (h.config.Iterations*2 + 2) / 3
	if successCount < minSuccessCount {
		require.NoErrorf(h.t, lastError, "Test %s failed with %d/%d successes (minimum %d required)",
			testName, successCount, h.config.Iterations, minSuccessCount)
	}
}

// WithTimeout runs a function with the configured timeout
func (h *TestHarness) WithTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	return fn(ctx)
}
