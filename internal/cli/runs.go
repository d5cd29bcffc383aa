package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/runlog"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent ingestion runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "maximum number of runs")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output runs as JSON")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RunLog.Path == "" {
		return errors.New("run history is disabled (runlog.path is empty)")
	}
	store, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	reports, err := store.Recent(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if runsJSON {
		return printJSON(cmd, reports)
	}

	w := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range reports {
		state := ""
		if r.Cancelled {
			state = " cancelled"
		}
		fmt.Fprintf(w, "%s  %s  tier=%s processed=%d skipped=%d failed=%d chunks=%d took=%s peak_heap=%s%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, r.Tier,
			r.Processed, r.Skipped, r.Failed, r.TotalChunksIndexed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), formatBytes(r.PeakHeapBytes), state)
	}
	return nil
}
