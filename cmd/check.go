package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:          "check [root...]",
	Short:        "Resolve every link in the workspace and report broken ones",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(args)
		if err != nil {
			return err
		}
		if _, err := eng.idx.Rebuild(cmd.Context(), eng.cfg.Rules); err != nil {
			return err
		}

		total, broken := 0, 0
		for _, fl := range eng.prov.WorkspaceLinks() {
			for _, link := range fl.Links {
				total++
				if !link.Broken() {
					continue
				}
				broken++
				start := link.Source.Range.Start
				fmt.Printf("%s:%d:%d: broken link %q (rule %s)\n",
					eng.ws.DisplayPath(fl.Path), start.Line+1, start.Col+1,
					link.Source.Key, link.Rule)
			}
		}

		fmt.Printf("\n%d links checked, %d broken\n", total, broken)
		if broken > 0 {
			return fmt.Errorf("%d broken links", broken)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
