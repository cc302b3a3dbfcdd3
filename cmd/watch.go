package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"linkdex/internal/index"
	"linkdex/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [root...]",
	Short: "Rebuild the index whenever destinations or the config change",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctrl := watch.NewController(eng.ws, eng.idx, eng.res, eng.cfg, watch.Options{
			ConfigPath: eng.cfgPath,
			OnRebuilt: func(stats index.Stats) {
				fmt.Printf("rebuilt in %s: %d files, %d keys, %d locations\n",
					stats.Duration.Round(time.Millisecond), stats.Files, stats.Keys, stats.Locations)
			},
		})

		if _, err := ctrl.Rebuild(ctx); err != nil {
			return err
		}
		return ctrl.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
