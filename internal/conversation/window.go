package conversation

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/cchalm/memochat/internal/ai"
)

// Windowing policy. These are fixed constants, not derived from anything.
const (
	// ContextWindowSize is how many of the most recent messages are sent to the response generator
	ContextWindowSize = 5
	// SummarizeThreshold is the message count a thread must exceed, after a response, to be summarized
	SummarizeThreshold = 6
	// SummarizationWindowSize caps how many messages are folded into the summary per turn
	SummarizationWindowSize = 10
	// RecentMessagesExcluded is how many of the newest messages are left out of summarization: the reply just
	// generated and the user message that prompted it
	RecentMessagesExcluded = 2
)

const summaryHeaderFormat = "Here is a summary of the conversation so far: %s. Use this to inform your response."

//go:embed summary_prompt.tmpl
var summaryPromptTemplate string

var summaryPrompt = template.Must(template.New("summary").Parse(summaryPromptTemplate))

// ContextWindow returns the messages sent to the response generator: at most ContextWindowSize of the most recent
// messages, preceded by a system message carrying the running summary when there is one
func ContextWindow(state ai.ConversationState) []ai.Message {
	recent := lastN(state.Messages, ContextWindowSize)

	window := make([]ai.Message, 0, len(recent)+1)
	if state.Summary != "" {
		window = append(window, ai.NewSystemMessage(fmt.Sprintf(summaryHeaderFormat, state.Summary)))
	}
	return append(window, recent...)
}

// SummarizationWindow returns the messages to fold into the summary: the log without its RecentMessagesExcluded
// newest messages, capped to the SummarizationWindowSize most recent of the rest. It may be empty.
func SummarizationWindow(state ai.ConversationState) []ai.Message {
	if len(state.Messages) <= RecentMessagesExcluded {
		return nil
	}
	older := state.Messages[:len(state.Messages)-RecentMessagesExcluded]
	window := lastN(older, SummarizationWindowSize)

	out := make([]ai.Message, len(window))
	copy(out, window)
	return out
}

type summaryPromptData struct {
	Summary string
	Lines   []string
}

// SummaryPrompt renders the single-turn prompt asking for an updated summary. Only user and assistant messages are
// rendered.
func SummaryPrompt(summary string, window []ai.Message) (string, error) {
	data := summaryPromptData{Summary: summary}
	for _, msg := range window {
		switch msg.Role {
		case ai.RoleUser:
			data.Lines = append(data.Lines, "User: "+msg.Content)
		case ai.RoleAssistant:
			data.Lines = append(data.Lines, "Assistant: "+msg.Content)
		}
	}

	var buf bytes.Buffer
	if err := summaryPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute summary prompt template: %w", err)
	}
	return buf.String(), nil
}

func lastN(messages []ai.Message, n int) []ai.Message {
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}
