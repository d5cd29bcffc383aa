package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive query console",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	m := tui.New(a.assembler(), tui.Options{
		TopK:     a.cfg.Retrieval.TopK,
		MaxChars: a.cfg.Retrieval.MaxContextChars,
		Header:   fmt.Sprintf("tier %s · %d chunks · %s embedder", a.profile.Name, a.index.Len(), a.embedder.Name()),
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
