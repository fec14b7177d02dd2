package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/memochat/internal/ai"
	"github.com/cchalm/memochat/internal/config"
)

// newFlagCommand returns a command carrying fresh root flags parsed from args. The package-level flag values and
// configuration are restored when the test ends.
func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	savedFlags, savedCfg, savedLogger := flags, cfg, logger
	t.Cleanup(func() {
		flags, cfg, logger = savedFlags, savedCfg, savedLogger
	})

	cmd := &cobra.Command{Use: "test"}
	registerRootFlags(cmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MEMOCHAT_PROVIDER", "MEMOCHAT_API_KEY", "MEMOCHAT_BASE_URL", "MEMOCHAT_MODEL", "MEMOCHAT_STORE",
		"MEMOCHAT_STORE_PATH", "MEMOCHAT_HISTORY_RETENTION", "MEMOCHAT_LOG_LEVEL", "MEMOCHAT_TELEMETRY_ENDPOINT",
		"MEMOCHAT_MAX_OUTPUT_TOKENS", "MEMOCHAT_REQUEST_TIMEOUT", "MEMOCHAT_TELEMETRY_ENABLED",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := newFlagCommand(t, "--model", "flag-model", "--store", "memory", "--telemetry")

	c := config.Default()
	c.Provider = config.ProviderAnthropic
	c.APIKey = "from-env"
	applyFlags(cmd, &c)

	assert.Equal(t, "flag-model", c.Model)
	assert.Equal(t, config.StoreMemory, c.Store)
	assert.True(t, c.TelemetryEnabled)
	assert.Equal(t, config.ProviderAnthropic, c.Provider)
	assert.Equal(t, "from-env", c.APIKey)
}

func TestLoadRootConfig_ProviderFlagSelectsProviderKey(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	cmd := newFlagCommand(t, "--provider", "anthropic", "--model", "claude")

	require.NoError(t, loadRootConfig(cmd, nil))

	assert.Equal(t, config.ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "sk-ant", cfg.APIKey)
}

func TestLoadRootConfig_ProviderKeyMissingForFlaggedProvider(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	cmd := newFlagCommand(t, "--provider", "anthropic", "--model", "claude")

	require.NoError(t, loadRootConfig(cmd, nil))

	assert.Empty(t, cfg.APIKey)
	assert.ErrorContains(t, cfg.Validate(), "missing API key")
}

func TestLoadRootConfig_APIKeyFlagWins(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	cmd := newFlagCommand(t, "--provider", "anthropic", "--api-key", "sk-flag")

	require.NoError(t, loadRootConfig(cmd, nil))

	assert.Equal(t, "sk-flag", cfg.APIKey)
}

// fakeChatService answers every message with its length and counts new threads
type fakeChatService struct {
	received []string
	threads  int
}

func (f *fakeChatService) SendMessage(_ context.Context, threadID string, text string) (ai.ConversationState, error) {
	f.received = append(f.received, text)
	return ai.NewConversationState(threadID).
		WithMessage(ai.NewUserMessage(text)).
		WithMessage(ai.NewAssistantMessage(fmt.Sprintf("got %d bytes", len(text)))), nil
}

func (f *fakeChatService) NewThread() string {
	f.threads++
	return fmt.Sprintf("thread-%d", f.threads)
}

func TestChatLoop_AcceptsLongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	svc := &fakeChatService{}
	var out bytes.Buffer

	err := chatLoop(context.Background(), strings.NewReader(long+"\nshort\n"), &out, svc, "t", "")

	require.NoError(t, err)
	assert.Equal(t, []string{long, "short"}, svc.received)
	assert.Contains(t, out.String(), "got 204800 bytes\n")
}

func TestChatLoop_Commands(t *testing.T) {
	svc := &fakeChatService{}
	var out bytes.Buffer

	err := chatLoop(context.Background(), strings.NewReader("hi\n\n/new\n/exit\nignored\n"), &out, svc, "t", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, svc.received)
	assert.Equal(t, 1, svc.threads)
	assert.Contains(t, out.String(), "thread thread-1\n")
}

func TestWriteTranscript(t *testing.T) {
	state := ai.NewConversationState("t").
		WithMessage(ai.NewUserMessage("Hi")).
		WithMessage(ai.NewAssistantMessage("Hello")).
		WithSummary("greetings")

	var buf bytes.Buffer
	writeTranscript(&buf, state)

	assert.Equal(t, "[summary] greetings\n\nuser: Hi\nassistant: Hello\n", buf.String())
	assert.Equal(t, "Hello", lastReply(state))
	assert.Equal(t, "", lastReply(ai.NewConversationState("t")))
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, Execute())
	assert.Equal(t, "memochat 1.2.3 (commit abc123, built today)\n", out.String())
}
