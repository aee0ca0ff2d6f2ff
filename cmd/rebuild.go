package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var rebuildTransform bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [source-id]",
	Short: "Reset a source so its tree is rebuilt",
	Long: `Clears the source's summary nodes and returns its build status to
pending. Leaf chunks are kept. The next worker scan picks it up.
A source currently mid-build cannot be reset.`,
	Args: cobra.ExactArgs(1),
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

		if err := a.Store.ResetBuild(ctx, sourceID); err != nil {
			return err
		}
		if rebuildTransform {
			if err := a.Store.ResetTransform(ctx, sourceID); err != nil {
				return err
			}
		}

		fmt.Printf("Source %s queued for rebuild.\n", sourceID)
		return nil
	},
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildTransform, "transform", false,
		"also reset the transformation pipeline")
	rootCmd.AddCommand(rebuildCmd)
}
