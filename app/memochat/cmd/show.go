package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print a thread's summary and messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, s.close()) }()

		state, err := s.service.Thread(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if showJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		writeTranscript(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the checkpoint as JSON")
	rootCmd.AddCommand(showCmd)
}
