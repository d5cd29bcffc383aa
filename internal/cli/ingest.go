package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/loader"
	"docrag/internal/logger"
	"docrag/internal/service"
)

var (
	ingestJSON    bool
	ingestReplace bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest documents into the index",
	Long: `Reads .txt and .md files (pages separated by form feeds) or .json files
with pre-extracted pages, chunks and embeds them under the tier's limits,
and persists the index. Oversized documents are skipped, not failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the run report as JSON")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "remove earlier chunks of the same documents first")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	docs, err := loader.Load(args, loader.Options{MaxReadBytes: a.profile.MaxFileSizeBytes})
	if err != nil {
		return err
	}
	ing, closeLog, err := a.ingestor()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ingestReplace {
		for _, d := range docs {
			if _, err := ing.RemoveDocument(ctx, d.ID); err != nil {
				return err
			}
		}
	}

	report, err := ing.Run(ctx, docs)
	if report == nil {
		return err
	}
	if ingestJSON {
		if outErr := printJSON(cmd, report); outErr != nil {
			return outErr
		}
	} else {
		printReport(cmd, report)
	}
	if err != nil && report.Cancelled {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}
	return err
}

func printReport(cmd *cobra.Command, r *service.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (tier %s)\n", r.RunID, r.Tier)
	for _, d := range r.Documents {
		line := fmt.Sprintf("  %-8s %s [%s] chunks=%d", d.Status, d.DisplayName, d.DocumentID, d.Chunks)
		if d.Reason != "" {
			line += " reason=" + d.Reason
		}
		if d.PagesDropped > 0 {
			line += fmt.Sprintf(" pages_dropped=%d", d.PagesDropped)
		}
		if d.ChunksDropped > 0 {
			line += fmt.Sprintf(" chunks_dropped=%d", d.ChunksDropped)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "processed=%d skipped=%d failed=%d total_chunks_indexed=%d\n",
		r.Processed, r.Skipped, r.Failed, r.TotalChunksIndexed)
	if logger.IsVerbose() {
		fmt.Fprintf(out, "took=%s peak_heap=%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), formatBytes(r.PeakHeapBytes))
	}
	if r.Cancelled {
		fmt.Fprintln(out, "run cancelled; work done so far was saved")
	}
}

func formatBytes(n uint64) string {
	const mib = 1 << 20
	if n < mib {
		return fmt.Sprintf("%dB", n)
	}
	return fmt.Sprintf("%.1fMiB", float64(n)/mib)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
