package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"legalrag/internal/tui"
)

func newTUICmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive terminal UI",
		Long: `Launch the interactive console.

Controls:
  Enter      - Search
  Ctrl+A     - Ask the synthesizer
  ↑/↓        - Browse hits
  PgUp/PgDn  - Scroll
  Ctrl+C     - Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, root, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runTUI(cmd *cobra.Command, root *rootOptions, opts *queryOptions) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	md, err := parseMetadata(opts.meta)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.preload(ctx, opts.sources, md)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	summary := fmt.Sprintf("%s store, %d chunks loaded from %d documents", cfg.VectorStore.Type, res.InsertedCount, res.Documents)

	m := tui.New(ctx, a.query, tui.Options{Filters: opts.filters(), TopK: opts.topK, CanAsk: a.synth != nil}, summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
