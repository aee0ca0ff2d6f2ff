package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/beedev/dbnotebook/internal/index"
)

var (
	ingestNotebook string
	ingestTitle    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a text document into a notebook",
	Long: `Splits the document into paragraph chunks, embeds them, and registers
the source. The workers then build its summary tree and study artifacts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notebookID, err := uuid.Parse(ingestNotebook)
		if err != nil {
			return fmt.Errorf("invalid --notebook id: %w", err)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		title := ingestTitle
		if title == "" {
			title = args[0]
		}

		chunks := splitParagraphs(string(data))
		if len(chunks) == 0 {
			return fmt.Errorf("%s contains no text", args[0])
		}

		ctx := cmd.Context()
		a, cleanup, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		src, err := a.Ingestor.Ingest(ctx, notebookID, title, chunks)
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %q as source %s (%d chunks).\n", title, src.ID, len(chunks))
		fmt.Println("Run 'dbnotebook serve-workers' to build its tree.")
		return nil
	},
}

// splitParagraphs is a minimal chunker for CLI ingestion: blank-line
// separated paragraphs, each one chunk. Pipelines that chunk upstream
// should call Ingestor.Ingest directly with their own chunks.
func splitParagraphs(text string) []index.Chunk {
	var chunks []index.Chunk
	for i, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, index.Chunk{
			ID:   fmt.Sprintf("p%04d", i),
			Text: para,
		})
	}
	return chunks
}

func init() {
	ingestCmd.Flags().StringVar(&ingestNotebook, "notebook", "", "notebook UUID (required)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "source title (defaults to the file name)")
	_ = ingestCmd.MarkFlagRequired("notebook")
	rootCmd.AddCommand(ingestCmd)
}
