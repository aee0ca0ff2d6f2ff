package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveWorkersCmd = &cobra.Command{
	Use:   "serve-workers",
	Short: "Run the build and transform worker pool until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, cleanup, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		return a.Pool.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveWorkersCmd)
}
