package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"legalrag/internal/logger"
	"legalrag/internal/service"
)

type ingestOptions struct {
	meta  map[string]string
	title string
	json  bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Ingest documents into the vector store",
		Long: `Loads each source (a file, a glob or an http(s) URL), normalizes and chunks
its text, scores every chunk and stores the embedded chunks together with the
given metadata.

Metadata keys: doc_type, code, issue_date, effective_date, source_tag.`,
		Example: `  legalrag ingest luat-kcb.txt --meta doc_type=Luật --meta code=15/2023/QH15 --meta source_tag=vac`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringToStringVar(&opts.meta, "meta", nil, "chunk metadata as key=value")
	cmd.Flags().StringVar(&opts.title, "title", "", "document title used by the title_overlap policy")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the result as JSON")
	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, opts *ingestOptions, sources []string) error {
	md, err := parseMetadata(opts.meta)
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.VectorStore.Type == "memory" {
		logger.Warn("the memory vector store is discarded on exit; use query --source to ingest and query in one run")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ingest.Ingest(ctx, service.IngestRequest{Sources: sources, Metadata: md, Title: opts.title})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if opts.json {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Printf("Ingested %d documents: %d chunks, %d stored, %d skipped.\n",
		res.Documents, res.Chunks, res.InsertedCount, res.Skipped)
	return nil
}
