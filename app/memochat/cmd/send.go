package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendThreadID string

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the reply",
	Long: `Runs a single turn. Without --thread a new thread is started and its id is
printed to standard error so the conversation can be continued.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendThreadID, "thread", "", "Thread to continue")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := setupContext()
	defer cancel()

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.close()) }()

	threadID := sendThreadID
	if threadID == "" {
		threadID = s.service.NewThread()
		fmt.Fprintf(cmd.ErrOrStderr(), "thread %s\n", threadID)
	}

	state, err := s.service.SendMessage(ctx, threadID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), lastReply(state))
	return nil
}
