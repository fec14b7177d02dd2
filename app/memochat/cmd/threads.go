package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List checkpointed threads, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, s.close()) }()

		ids, err := s.service.Threads(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
}
