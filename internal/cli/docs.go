package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var docsJSON bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the documents held in the index",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

func init() {
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "output documents as JSON")
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	docs := a.index.Documents()
	if docsJSON {
		return printJSON(cmd, docs)
	}

	w := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(w, "Index is empty.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  chunks=%d pages=%d\n", d.ID, d.Chunks, d.Pages)
	}
	fmt.Fprintf(w, "%d documents, %d chunks\n", len(docs), a.index.Len())
	return nil
}
