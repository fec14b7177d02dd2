// Package conversation runs conversation turns: response generation, conditional summarization and checkpointing
// per thread.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cchalm/memochat/internal/ai"
	"github.com/cchalm/memochat/internal/checkpoint"
	"github.com/cchalm/memochat/internal/telemetry"
)

// FallbackReply replaces a generated reply that did not come from the assistant
const FallbackReply = "Sorry, I encountered an issue."

// Step is a state of the per-turn state machine
type Step int

const (
	StepRespond Step = iota
	StepSummarize
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepRespond:
		return "respond"
	case StepSummarize:
		return "summarize"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// NextStep is the transition function. After responding, a thread holding more than SummarizeThreshold messages is
// summarized; every other step leads to StepDone.
func NextStep(current Step, messageCount int) Step {
	if current == StepRespond && messageCount > SummarizeThreshold {
		return StepSummarize
	}
	return StepDone
}

// Turn is the input of one conversation turn
type Turn struct {
	ThreadID string
	Input    string // The user's message
}

// MachineOptions holds the optional collaborators of a Machine
type MachineOptions struct {
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Retention Retention
}

// Machine runs turns. It holds no per-thread state: each turn starts from the thread's latest checkpoint and ends by
// writing a new one.
type Machine struct {
	generator  ai.ResponseGenerator
	summarizer ai.Summarizer
	store      checkpoint.Store

	logger    *slog.Logger
	tracer    trace.Tracer
	retention Retention
}

func NewMachine(generator ai.ResponseGenerator, summarizer ai.Summarizer, store checkpoint.Store, opts MachineOptions) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Machine{
		generator:  generator,
		summarizer: summarizer,
		store:      store,
		logger:     logger,
		tracer:     tracer,
		retention:  opts.Retention,
	}
}

// RunTurn appends the user's message to the thread, generates a reply, summarizes older history if the thread has
// grown past the threshold, and checkpoints the result. On error nothing is saved and the previous checkpoint stays
// authoritative.
func (m *Machine) RunTurn(ctx context.Context, turn Turn) (ai.ConversationState, error) {
	if turn.ThreadID == "" {
		return ai.ConversationState{}, fmt.Errorf("thread id is required")
	}

	turnID := telemetry.NewTurnID()
	ctx, span := m.tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.String("thread.id", turn.ThreadID),
		attribute.String("turn.id", turnID),
	))
	defer span.End()
	logger := m.logger.With("thread_id", turn.ThreadID, "turn_id", turnID)

	state, err := m.load(ctx, turn.ThreadID)
	if err != nil {
		recordError(span, err)
		return ai.ConversationState{}, err
	}
	state = state.WithMessage(ai.NewUserMessage(turn.Input))

	step := StepRespond
	for step != StepDone {
		switch step {
		case StepRespond:
			state, err = m.respond(ctx, logger, state)
		case StepSummarize:
			state, err = m.summarize(ctx, logger, state)
		}
		if err != nil {
			err = &TurnError{ThreadID: turn.ThreadID, Step: step, Err: err}
			recordError(span, err)
			logger.Error("turn failed", "step", step, "error", err)
			return ai.ConversationState{}, err
		}
		step = NextStep(step, len(state.Messages))
	}

	if err := m.store.Save(ctx, turn.ThreadID, state); err != nil {
		err = &TurnError{ThreadID: turn.ThreadID, Step: StepDone, Err: fmt.Errorf("failed to save checkpoint: %w", err)}
		recordError(span, err)
		return ai.ConversationState{}, err
	}

	span.SetAttributes(attribute.Int("conversation.messages", len(state.Messages)))
	logger.Info("turn complete", "messages", len(state.Messages), "has_summary", state.Summary != "")
	return state, nil
}

// load returns the thread's latest checkpoint, or an empty state for a thread that has never been checkpointed
func (m *Machine) load(ctx context.Context, threadID string) (ai.ConversationState, error) {
	prior, err := m.store.Get(ctx, threadID)
	if errors.Is(err, checkpoint.ErrStorageUnavailable) {
		return ai.NewConversationState(threadID), nil
	} else if err != nil {
		return ai.ConversationState{}, fmt.Errorf("failed to load checkpoint for thread %q: %w", threadID, err)
	}
	if prior == nil {
		return ai.NewConversationState(threadID), nil
	}
	return *prior, nil
}

func (m *Machine) respond(ctx context.Context, logger *slog.Logger, state ai.ConversationState) (ai.ConversationState, error) {
	window := ContextWindow(state)

	ctx, span := m.tracer.Start(ctx, "conversation.respond", trace.WithAttributes(
		attribute.Int("conversation.window", len(window)),
	))
	defer span.End()

	reply, err := m.generator.Generate(ctx, window)
	if err != nil {
		recordError(span, err)
		return ai.ConversationState{}, err
	}
	if reply.Role != ai.RoleAssistant {
		malformed := &ai.MalformedResponseError{Role: reply.Role}
		span.RecordError(malformed)
		logger.Error("response generator did not return an assistant message", "error", malformed)
		reply = ai.NewAssistantMessage(FallbackReply)
	}
	return state.WithMessage(reply), nil
}

func (m *Machine) summarize(ctx context.Context, logger *slog.Logger, state ai.ConversationState) (ai.ConversationState, error) {
	window := SummarizationWindow(state)
	if len(window) == 0 {
		// Nothing older than the current exchange yet
		return state, nil
	}

	ctx, span := m.tracer.Start(ctx, "conversation.summarize", trace.WithAttributes(
		attribute.Int("conversation.window", len(window)),
	))
	defer span.End()

	prompt, err := SummaryPrompt(state.Summary, window)
	if err != nil {
		recordError(span, err)
		return ai.ConversationState{}, err
	}
	summary, err := m.summarizer.Summarize(ctx, prompt)
	if err != nil {
		recordError(span, err)
		return ai.ConversationState{}, err
	}

	logger.Info("conversation summarized", "summarized_messages", len(window), "messages", len(state.Messages))
	return m.retention.apply(state.WithSummary(summary)), nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
