//go:build e2e

package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cchalm/memochat/internal/conversation"
	"github.com/cchalm/memochat/test/e2e/testutil"
)

var fillerMessages = []string{
	"What is the capital of Australia?",
	"Name a prime number larger than 50.",
	"How many legs does a spider have?",
	"What colour do you get by mixing blue and yellow?",
}

// TestRecallAfterSummarization checks that a fact given early in a thread is still known once it has left the
// context window and survives only in the summary
func TestRecallAfterSummarization(t *testing.T) {
	for _, retention := range []conversation.Retention{conversation.RetainAll, conversation.RetainUnsummarized} {
		t.Run(retention.String(), func(t *testing.T) {
			harness := testutil.NewTestHarness(t)

			harness.RunIterations("recall_after_summarization", func(iteration int) error {
				return harness.WithTimeout(func(ctx context.Context) error {
					svc := harness.NewService(retention)
					threadID := fmt.Sprintf("e2e-recall-%d", iteration)

					if _, err := svc.SendMessage(ctx, threadID, "Please remember this: my dog's name is Biscuit."); err != nil {
						return fmt.Errorf("failed to send fact: %w", err)
					}
					for _, msg := range fillerMessages {
						if _, err := svc.SendMessage(ctx, threadID, msg); err != nil {
							return fmt.Errorf("failed to send filler: %w", err)
						}
					}

					state, err := svc.SendMessage(ctx, threadID, "What is my dog's name?")
					if err != nil {
						return fmt.Errorf("failed to send question: %w", err)
					}
					if state.Summary == "" {
						return fmt.Errorf("expected a summary after %d messages", len(state.Messages))
					}

					reply := state.Messages[len(state.Messages)-1].Content
					if !strings.Contains(strings.ToLower(reply), "biscuit") {
						return fmt.Errorf("reply does not recall the fact: %q (summary: %q)", reply, state.Summary)
					}
					return nil
				})
			})
		})
	}
}

// TestThreadsAreIndependent checks that a fact given on one thread does not leak into another
func TestThreadsAreIndependent(t *testing.T) {
	harness := testutil.NewTestHarness(t)

	harness.RunIterations("threads_are_independent", func(iteration int) error {
		return harness.WithTimeout(func(ctx context.Context) error {
			svc := harness.NewService(conversation.RetainAll)

			if _, err := svc.SendMessage(ctx, "e2e-a", "My favourite fruit is a quince. Just acknowledge."); err != nil {
				return err
			}
			state, err := svc.SendMessage(ctx, "e2e-b", "Have I told you my favourite fruit? Answer yes or no, then name it if so.")
			if err != nil {
				return err
			}

			reply := strings.ToLower(state.Messages[len(state.Messages)-1].Content)
			if strings.Contains(reply, "quince") {
				return fmt.Errorf("thread b knows thread a's fact: %q", reply)
			}
			return nil
		})
	})
}
