package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove [document-id]",
	Short: "Remove a document's chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ing, closeLog, err := a.ingestor()
	if err != nil {
		return err
	}
	defer closeLog()

	n, err := ing.RemoveDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Document %s not found in index.\n", args[0])
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunks of %s.\n", n, args[0])
	return nil
}
