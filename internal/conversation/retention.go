package conversation

import (
	"fmt"

	"github.com/cchalm/memochat/internal/ai"
	"github.com/cchalm/memochat/internal/config"
)

// Retention decides what happens to the persisted log once older messages have been folded into the summary.
// Summarization always bounds the context sent to the model; retention only affects the stored history.
type Retention int

const (
	// RetainAll keeps the full append-only log as an audit trail. The log grows without bound.
	RetainAll Retention = iota
	// RetainUnsummarized drops every message except the RecentMessagesExcluded newest ones after a summarization,
	// since the summary now stands in for them
	RetainUnsummarized
)

func (r Retention) String() string {
	switch r {
	case RetainAll:
		return config.RetentionAll
	case RetainUnsummarized:
		return config.RetentionUnsummarized
	default:
		return fmt.Sprintf("retention(%d)", int(r))
	}
}

// ParseRetention converts a configuration value into a Retention
func ParseRetention(s string) (Retention, error) {
	switch s {
	case "", config.RetentionAll:
		return RetainAll, nil
	case config.RetentionUnsummarized:
		return RetainUnsummarized, nil
	default:
		return RetainAll, fmt.Errorf("unknown history retention %q", s)
	}
}

func (r Retention) apply(state ai.ConversationState) ai.ConversationState {
	if r != RetainUnsummarized || len(state.Messages) <= RecentMessagesExcluded {
		return state
	}
	return state.WithMessages(state.Messages[len(state.Messages)-RecentMessagesExcluded:])
}
