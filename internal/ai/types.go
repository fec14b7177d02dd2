// Package ai provides the conversation data model and the model-backed response generator and summarizer.
package ai

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a conversation. Messages are values and are never mutated once appended to a thread.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// ConversationState contains a serializable and resumable snapshot of one conversation thread
type ConversationState struct {
	ThreadID string    `json:"threadId"`
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary"` // Empty until the first summarization
}

// NewConversationState returns the empty state of a thread that has never been checkpointed
func NewConversationState(threadID string) ConversationState {
	return ConversationState{ThreadID: threadID}
}

// WithMessage returns a copy of the state with msg appended. The receiver's message slice is not shared with the
// result.
func (cs ConversationState) WithMessage(msg Message) ConversationState {
	messages := make([]Message, len(cs.Messages), len(cs.Messages)+1)
	copy(messages, cs.Messages)
	cs.Messages = append(messages, msg)
	return cs
}

// WithMessages returns a copy of the state whose log is replaced by a copy of messages
func (cs ConversationState) WithMessages(messages []Message) ConversationState {
	cs.Messages = cloneMessages(messages)
	return cs
}

// WithSummary returns a copy of the state with its running summary replaced
func (cs ConversationState) WithSummary(summary string) ConversationState {
	cs.Messages = cloneMessages(cs.Messages)
	cs.Summary = summary
	return cs
}

// Clone returns a deep copy of the state
func (cs ConversationState) Clone() ConversationState {
	cs.Messages = cloneMessages(cs.Messages)
	return cs
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	cloned := make([]Message, len(messages))
	copy(cloned, messages)
	return cloned
}
