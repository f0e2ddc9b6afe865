// Package cli implements the legalrag command line.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"legalrag/internal/config"
	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

var version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "legalrag",
		Short: "Retrieval and question answering over Vietnamese legal documents",
		Long: `legalrag ingests Vietnamese legal documents into a vector store and answers
questions about them.

Documents are normalized, chunked, quality-scored and embedded on ingest.
Queries return the closest chunks with their metadata; ask additionally
synthesizes an answer from those chunks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetVerbose(opts.verbose)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML or TOML config file (default ./config.yaml, then ~/.config/legalrag/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newIngestCmd(opts),
		newQueryCmd(opts),
		newAskCmd(opts),
		newTUICmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if o.configPath == "" {
		var path string
		cfg, path, err = config.LoadDefault()
		if err == nil {
			logger.Debug("using config %s", path)
		}
	} else {
		cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseMetadata turns key=value pairs into chunk metadata.
func parseMetadata(pairs map[string]string) (domain.ChunkMetadata, error) {
	var md domain.ChunkMetadata
	for k, v := range pairs {
		key := strings.ToLower(strings.TrimSpace(k))
		switch key {
		case domain.FieldDocType, domain.FieldCode, domain.FieldIssueDate, domain.FieldEffectiveDate, domain.FieldSourceTag:
			md.Set(key, strings.TrimSpace(v))
		default:
			return md, fmt.Errorf("%w: unknown metadata key %q", domain.ErrInvalidConfig, k)
		}
	}
	return md, nil
}
