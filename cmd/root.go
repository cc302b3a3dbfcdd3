package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"linkdex/internal/logging"
)

var (
	flagConfig  string
	flagRoot    []string
	flagVerbose int
)

var rootCmd = &cobra.Command{
	Use:   "linkdex",
	Short: "Regex-driven link index for plain-text workspaces",
	Long: `linkdex pairs source patterns (where links are written) with destination
patterns (where their targets live) and resolves references across files.
Rules live in .linkdex.toml at the workspace root.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(flagVerbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .linkdex.toml in the first root)")
	rootCmd.PersistentFlags().StringArrayVar(&flagRoot, "root", nil, "workspace root, repeatable (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "log verbosity (-v info, -vv debug)")
}
