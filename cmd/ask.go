package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/beedev/dbnotebook/internal/retrieval"
)

var (
	askNotebook string
	askK        int
	askStrategy string
	askMaxLevel int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Retrieve the most relevant passages for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notebookID, err := uuid.Parse(askNotebook)
		if err != nil {
			return fmt.Errorf("invalid --notebook id: %w", err)
		}

		ctx := cmd.Context()
		a, cleanup, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		results, err := a.Retrieval.Retrieve(ctx, retrieval.Request{
			NotebookID: notebookID,
			Query:      strings.Join(args, " "),
			K:          askK,
			Strategy:   retrieval.Strategy(askStrategy),
			MaxLevel:   askMaxLevel,
		})
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results. Is anything ingested into this notebook?")
			return nil
		}

		for i, r := range results {
			kind := "chunk"
			if r.IsSummary {
				kind = fmt.Sprintf("summary L%d", r.TreeLevel)
			}
			fmt.Printf("%2d. [%.3f] (%s, source %s)\n", i+1, r.Score, kind, r.SourceID)
			fmt.Printf("    %s\n\n", r.Content)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askNotebook, "notebook", "", "notebook UUID (required)")
	askCmd.Flags().IntVar(&askK, "k", 0, "number of results (0 uses the configured default)")
	askCmd.Flags().StringVar(&askStrategy, "strategy", string(retrieval.StrategyCollapsed),
		"retrieval strategy: collapsed, leaf_only, or level_capped")
	askCmd.Flags().IntVar(&askMaxLevel, "max-level", 0, "level cap for the level_capped strategy")
	_ = askCmd.MarkFlagRequired("notebook")
	rootCmd.AddCommand(askCmd)
}
