package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/config"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Show the active limit profile and available tiers",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := cfg.Profile()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Active tier: %s\n", p.Name)
	fmt.Fprintf(w, "  max_file_size_bytes  %d\n", p.MaxFileSizeBytes)
	fmt.Fprintf(w, "  max_pages            %d\n", p.MaxPages)
	fmt.Fprintf(w, "  max_chunks_total     %d\n", p.MaxChunksTotal)
	fmt.Fprintf(w, "  max_chunks_per_page  %d\n", p.MaxChunksPerPage)
	fmt.Fprintf(w, "  chunk_size_chars     %d\n", p.ChunkSizeChars)
	fmt.Fprintf(w, "  batch_size           %d\n", p.BatchSize)
	fmt.Fprintln(w, "Available tiers:")
	for _, name := range config.TierNames(cfg.Profiles) {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}
