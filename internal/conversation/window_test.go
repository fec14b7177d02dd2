package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/memochat/internal/ai"
)

// alternatingState builds a thread of n messages, alternating user and assistant, numbered from 1
func alternatingState(threadID string, n int) ai.ConversationState {
	state := ai.NewConversationState(threadID)
	for i := 1; i <= n; i++ {
		if i%2 == 1 {
			state = state.WithMessage(ai.NewUserMessage(fmt.Sprintf("u%d", i)))
		} else {
			state = state.WithMessage(ai.NewAssistantMessage(fmt.Sprintf("a%d", i)))
		}
	}
	return state
}

func TestContextWindow_ShortThread(t *testing.T) {
	state := alternatingState("t", 1)

	window := ContextWindow(state)

	assert.Equal(t, []ai.Message{ai.NewUserMessage("u1")}, window)
}

func TestContextWindow_KeepsLastFive(t *testing.T) {
	state := alternatingState("t", 9)

	window := ContextWindow(state)

	require.Len(t, window, ContextWindowSize)
	assert.Equal(t, "u5", window[0].Content)
	assert.Equal(t, "u9", window[4].Content)
}

func TestContextWindow_PrependsSummaryHeader(t *testing.T) {
	state := alternatingState("t", 9).WithSummary("they discussed cats")

	window := ContextWindow(state)

	require.Len(t, window, ContextWindowSize+1)
	assert.Equal(t, ai.NewSystemMessage(
		"Here is a summary of the conversation so far: they discussed cats. Use this to inform your response.",
	), window[0])
	assert.Equal(t, "u5", window[1].Content)
}

func TestContextWindow_BoundedForAnyLength(t *testing.T) {
	for n := 0; n <= 40; n++ {
		state := alternatingState("t", n).WithSummary("s")
		assert.LessOrEqual(t, len(ContextWindow(state)), ContextWindowSize+1, "n=%d", n)
	}
}

func TestContextWindow_DoesNotAliasLog(t *testing.T) {
	state := alternatingState("t", 3)

	window := ContextWindow(state)
	window[0].Content = "changed"

	assert.Equal(t, "u1", state.Messages[0].Content)
}

func TestSummarizationWindow_ExcludesLatestExchange(t *testing.T) {
	state := alternatingState("t", 8)

	window := SummarizationWindow(state)

	require.Len(t, window, 6)
	assert.Equal(t, "u1", window[0].Content)
	assert.Equal(t, "a6", window[5].Content)
}

func TestSummarizationWindow_CapsAtTen(t *testing.T) {
	state := alternatingState("t", 20)

	window := SummarizationWindow(state)

	require.Len(t, window, SummarizationWindowSize)
	assert.Equal(t, "u9", window[0].Content)
	assert.Equal(t, "a18", window[9].Content)
}

func TestSummarizationWindow_NeverIncludesLastTwo(t *testing.T) {
	for n := 0; n <= 30; n++ {
		state := alternatingState("t", n)
		window := SummarizationWindow(state)
		for _, msg := range window {
			if n >= 1 {
				assert.NotEqual(t, state.Messages[n-1].Content, msg.Content, "n=%d", n)
			}
			if n >= 2 {
				assert.NotEqual(t, state.Messages[n-2].Content, msg.Content, "n=%d", n)
			}
		}
	}
}

func TestSummarizationWindow_EmptyForShortThreads(t *testing.T) {
	assert.Empty(t, SummarizationWindow(alternatingState("t", 0)))
	assert.Empty(t, SummarizationWindow(alternatingState("t", 2)))
	assert.Len(t, SummarizationWindow(alternatingState("t", 3)), 1)
}

func TestSummaryPrompt_WithoutPriorSummary(t *testing.T) {
	prompt, err := SummaryPrompt("", []ai.Message{
		ai.NewUserMessage("Hi"),
		ai.NewAssistantMessage("Hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Based on the following recent messages:\n\n"+
		"User: Hi\n"+
		"Assistant: Hello\n"+
		"\nPlease update or create a concise summary of the entire conversation.", prompt)
}

func TestSummaryPrompt_WithPriorSummary(t *testing.T) {
	prompt, err := SummaryPrompt("Old summary", []ai.Message{
		ai.NewUserMessage("Hi"),
	})

	require.NoError(t, err)
	assert.Equal(t, "This is the current summary of the conversation: Old summary\n\n"+
		"Based on the following recent messages:\n\n"+
		"User: Hi\n"+
		"\nPlease update or create a concise summary of the entire conversation.", prompt)
}

func TestSummaryPrompt_SkipsSystemMessages(t *testing.T) {
	prompt, err := SummaryPrompt("", []ai.Message{
		ai.NewSystemMessage("ignored"),
		ai.NewUserMessage("kept"),
	})

	require.NoError(t, err)
	assert.NotContains(t, prompt, "ignored")
	assert.Contains(t, prompt, "User: kept\n")
}

func TestSummaryPrompt_DoesNotEscapeContent(t *testing.T) {
	prompt, err := SummaryPrompt("", []ai.Message{ai.NewUserMessage(`<b>"quoted" & more</b>`)})

	require.NoError(t, err)
	assert.Contains(t, prompt, `User: <b>"quoted" & more</b>`)
}
