package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [root...]",
	Short: "Build the destination index and print stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(args)
		if err != nil {
			return err
		}

		fmt.Printf("Indexing %s...\n", strings.Join(eng.ws.Roots(), ", "))

		stats, err := eng.idx.Rebuild(cmd.Context(), eng.cfg.Rules)
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s\n", stats.Duration.Round(time.Millisecond))
		fmt.Printf("  Rules:     %d\n", len(eng.cfg.Rules))
		fmt.Printf("  Files:     %d\n", stats.Files)
		fmt.Printf("  Keys:      %d\n", stats.Keys)
		fmt.Printf("  Locations: %d\n", stats.Locations)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
