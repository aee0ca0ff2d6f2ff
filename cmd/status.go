package cmd

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [source-id]",
	Short: "Show a source's pipeline statuses and tree shape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid source id: %w", err)
		}

		ctx := cmd.Context()
		a, cleanup, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := a.Store.SourceStatus(ctx, sourceID)
		if err != nil {
			return err
		}

		src := st.Source
		fmt.Printf("Source:    %s (%q)\n", src.ID, src.Title)
		fmt.Printf("Notebook:  %s\n", src.NotebookID)
		fmt.Printf("Active:    %v\n", src.Active)

		fmt.Printf("Tree:      %s", src.RaptorStatus)
		if src.RaptorError != "" {
			fmt.Printf(" (%s)", src.RaptorError)
		}
		if src.RaptorBuiltAt != nil {
			fmt.Printf(", built %s", src.RaptorBuiltAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()

		fmt.Printf("Transform: %s", src.TransformationStatus)
		if src.TransformationError != "" {
			fmt.Printf(" (%s)", src.TransformationError)
		}
		fmt.Println()

		levels := make([]int, 0, len(st.LevelCounts))
		for level := range st.LevelCounts {
			levels = append(levels, level)
		}
		sort.Ints(levels)
		for _, level := range levels {
			fmt.Printf("  level %d: %d nodes\n", level, st.LevelCounts[level])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
