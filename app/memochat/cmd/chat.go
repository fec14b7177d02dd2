package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cchalm/memochat/internal/ai"
)

var chatThreadID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Reads messages from standard input, one per line, and prints each reply.
Type /new to start a new thread or /exit to quit. Without --thread a new thread is
started.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatThreadID, "thread", "", "Thread to resume")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) (err error) {
	ctx, cancel := setupContext()
	defer cancel()

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.close()) }()

	out := cmd.OutOrStdout()
	threadID := chatThreadID
	summary := ""
	if threadID == "" {
		threadID = s.service.NewThread()
	} else {
		state, err := s.service.Thread(ctx, threadID)
		if err != nil {
			return err
		}
		writeTranscript(out, state)
		summary = state.Summary
	}
	fmt.Fprintf(out, "thread %s\n", threadID)

	return chatLoop(ctx, cmd.InOrStdin(), out, s.service, threadID, summary)
}

// maxChatLineBytes bounds one line of input, so long pasted messages still fit
const maxChatLineBytes = 1 << 20

// chatService is the part of the conversation service the chat loop drives
type chatService interface {
	SendMessage(ctx context.Context, threadID string, text string) (ai.ConversationState, error)
	NewThread() string
}

// chatLoop runs one turn per input line until the input ends, the context is cancelled or the user exits
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, svc chatService, threadID string, summary string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChatLineBytes)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			threadID = svc.NewThread()
			summary = ""
			fmt.Fprintf(out, "thread %s\n", threadID)
			continue
		}

		state, err := svc.SendMessage(ctx, threadID, line)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			// The thread is unchanged; the user may retry
			logger.Error("turn failed", "thread_id", threadID, "error", err)
			fmt.Fprintln(out, "(no reply, see log)")
			continue
		}
		fmt.Fprintln(out, lastReply(state))
		if state.Summary != summary {
			summary = state.Summary
			fmt.Fprintf(out, "[summary] %s\n", summary)
		}
	}
}

func lastReply(state ai.ConversationState) string {
	if len(state.Messages) == 0 {
		return ""
	}
	return state.Messages[len(state.Messages)-1].Content
}

func writeTranscript(w io.Writer, state ai.ConversationState) {
	if state.Summary != "" {
		fmt.Fprintf(w, "[summary] %s\n\n", state.Summary)
	}
	for _, msg := range state.Messages {
		fmt.Fprintf(w, "%s: %s\n", msg.Role, msg.Content)
	}
}
