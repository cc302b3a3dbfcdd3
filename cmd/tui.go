package cmd

import (
	"linkdex/internal/tui"
)

var flagNoWatch bool

func runTUI() error {
	eng, err := newEngine(nil)
	if err != nil {
		return err
	}

	return tui.Run(tui.Config{
		Workspace:  eng.ws,
		Index:      eng.idx,
		Resolver:   eng.res,
		Providers:  eng.prov,
		Rules:      eng.cfg,
		ConfigPath: eng.cfgPath,
		Watch:      !flagNoWatch,
	})
}

func init() {
	rootCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "do not rebuild the index on file changes while browsing")
}
