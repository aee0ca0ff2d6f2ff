package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	embedderModel    string
	embedderProvider string
	embedderDims     int
)

var setEmbedderCmd = &cobra.Command{
	Use:   "set-embedder",
	Short: "Make a new embedding model authoritative",
	Long: `Supersedes the current embedding configuration. Existing vectors are
not migrated: sources embedded under the old model keep serving until they
are re-ingested or rebuilt, and new writes under the old identity are
rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, cleanup, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		cfg, err := a.Store.SetEmbeddingConfig(ctx, embedderModel, embedderProvider, embedderDims)
		if err != nil {
			return err
		}

		fmt.Printf("Embedding config set: %s/%s (%d dimensions).\n",
			cfg.Provider, cfg.Model, cfg.Dimensions)
		fmt.Println("Re-ingest or rebuild existing sources to migrate them.")
		return nil
	},
}

func init() {
	setEmbedderCmd.Flags().StringVar(&embedderModel, "model", "", "embedding model name (required)")
	setEmbedderCmd.Flags().StringVar(&embedderProvider, "provider", "", "embedding provider (required)")
	setEmbedderCmd.Flags().IntVar(&embedderDims, "dimensions", 0, "vector dimensions (required)")
	_ = setEmbedderCmd.MarkFlagRequired("model")
	_ = setEmbedderCmd.MarkFlagRequired("provider")
	_ = setEmbedderCmd.MarkFlagRequired("dimensions")
	rootCmd.AddCommand(setEmbedderCmd)
}
