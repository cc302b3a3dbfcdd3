package cmd

import (
	"fmt"
	"os"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/logging"
	"linkdex/internal/providers"
	"linkdex/internal/resolver"
	"linkdex/internal/workspace"
)

// engine bundles the wired-up core shared by every command.
type engine struct {
	cfg     *config.Config
	cfgPath string
	ws      *workspace.Workspace
	idx     *index.Index
	res     *resolver.Resolver
	prov    *providers.Providers
}

// newEngine resolves roots and config, then wires workspace, index,
// resolver and providers. Roots come from positional args, then --root,
// then the current directory. A missing config file is not an error: the
// engine runs with an empty rule set and resolves nothing.
func newEngine(args []string) (*engine, error) {
	roots := append([]string{}, args...)
	roots = append(roots, flagRoot...)
	if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		roots = []string{wd}
	}

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = config.Find(roots[0])
		if cfgPath == "" {
			log := logging.GetLogger("cmd")
			log.Warn().Str("root", roots[0]).
				Msg("no config file found, starting with an empty rule set")
		}
	}

	cfg, err := config.Load(cfgPath, roots)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ws := workspace.New(cfg.Roots)
	ix := index.New(ws)
	res := resolver.New(ws, ix)
	res.SetRules(cfg.Rules)

	return &engine{
		cfg:     cfg,
		cfgPath: cfgPath,
		ws:      ws,
		idx:     ix,
		res:     res,
		prov:    providers.New(ws, res),
	}, nil
}
