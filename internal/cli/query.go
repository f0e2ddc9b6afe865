package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"legalrag/internal/retrieval"
	"legalrag/internal/service"
	"legalrag/internal/synthesizer"
)

// queryOptions are shared by query, ask and tui.
type queryOptions struct {
	topK    int
	docType string
	code    string
	sources []string
	meta    map[string]string
	json    bool
}

func (o *queryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.topK, "top-k", "k", 0, "maximum number of hits (default from config)")
	cmd.Flags().StringVar(&o.docType, "doc-type", "", "only search chunks with this document type")
	cmd.Flags().StringVar(&o.code, "code", "", "only search chunks with this document code")
	cmd.Flags().StringArrayVarP(&o.sources, "source", "s", nil, "ingest this source before querying (repeatable)")
	cmd.Flags().StringToStringVar(&o.meta, "meta", nil, "metadata for --source chunks as key=value")
}

func (o *queryOptions) filters() retrieval.Filters {
	return retrieval.Filters{DocType: o.docType, Code: o.code}
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Search ingested documents",
		Long: `Embeds the question and returns the closest chunks in store order, optionally
restricted to a document type and code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, opts, args[0], false)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	return cmd
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from ingested documents",
		Long: `Retrieves the closest chunks, assembles them into a token-bounded context and
asks the configured synthesizer for an answer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, opts, args[0], true)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the answer as JSON")
	return cmd
}

func runQuery(cmd *cobra.Command, root *rootOptions, opts *queryOptions, question string, ask bool) error {
	md, err := parseMetadata(opts.meta)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, ask)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.preload(ctx, opts.sources, md); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var res service.QueryResult
	if ask {
		res, err = a.query.Ask(ctx, question, opts.filters(), opts.topK)
	} else {
		res, err = a.query.Query(ctx, question, opts.filters(), opts.topK)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if opts.json {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res service.QueryResult) {
	if res.NotFound {
		cmd.Println(res.Message)
		return
	}
	if res.Answer != "" {
		cmd.Println(res.Answer)
		cmd.Println()
		cmd.Println("Nguồn:")
	}
	for i, h := range res.Hits {
		cmd.Printf("  [%d] score=%.4f id=%s\n", i+1, h.Score, h.ID)
		block := synthesizer.FormatHit(h)
		for _, line := range strings.Split(block, "\n") {
			cmd.Printf("      %s\n", line)
		}
		cmd.Println()
	}
}
