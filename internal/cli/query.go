package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryK        int
	queryMaxChars int
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Assemble a bounded context for a question",
	Long: `Embeds the question, retrieves the nearest chunks and joins them, best
first, into a context no longer than --max-chars characters. Prints the
context followed by its sources.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

type queryOutput struct {
	Query   string         `json:"query"`
	Context string         `json:"context"`
	Sources []sourceOutput `json:"sources"`
}

type sourceOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	Score      float64 `json:"score"`
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().IntVar(&queryMaxChars, "max-chars", 0, "context size limit in characters (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output context and sources as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	k, maxChars := queryK, queryMaxChars
	if k <= 0 {
		k = a.cfg.Retrieval.TopK
	}
	if maxChars <= 0 {
		maxChars = a.cfg.Retrieval.MaxContextChars
	}

	q := strings.Join(args, " ")
	res, err := a.assembler().Assemble(cmd.Context(), q, k, maxChars)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out := queryOutput{Query: q, Context: res.Text, Sources: make([]sourceOutput, 0, len(res.Sources))}
	for _, s := range res.Sources {
		out.Sources = append(out.Sources, sourceOutput{
			ChunkID:    s.Chunk.ID,
			DocumentID: s.Chunk.DocumentID,
			Page:       s.Chunk.PageNumber,
			Score:      s.Score,
		})
	}
	if queryJSON {
		return printJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if len(out.Sources) == 0 {
		fmt.Fprintln(w, "No relevant context found.")
		return nil
	}
	fmt.Fprintln(w, out.Context)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, s := range out.Sources {
		fmt.Fprintf(w, "  [%d] %s page %d (%.3f)\n", i+1, s.DocumentID, s.Page, s.Score)
	}
	return nil
}
