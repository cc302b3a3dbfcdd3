// Package watch decides how the engine reacts to change: configuration
// edits and destination-file saves rebuild the whole index, everything else
// only refreshes the affected document. There is no incremental indexing.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/logging"
	"linkdex/internal/resolver"
	"linkdex/internal/workspace"
)

// State is the controller's rebuild state.
type State int

const (
	StateIdle State = iota
	StateRebuilding
)

func (s State) String() string {
	if s == StateRebuilding {
		return "rebuilding"
	}
	return "idle"
}

// EventKind classifies an external change.
type EventKind int

const (
	EventConfigChanged EventKind = iota
	EventFileSaved
	EventDocumentEdited
	EventActiveDocumentChanged
)

// Event is one external change to react to.
type Event struct {
	Kind EventKind
	Path string
}

// Action is what an event triggers.
type Action int

const (
	ActionNone Action = iota
	ActionRefresh
	ActionRebuild
	ActionReloadAndRebuild
)

// actions is the base decision table per event kind. A file save is
// promoted from refresh to rebuild when its path matches a destination
// glob; Classify applies that promotion.
var actions = map[EventKind]Action{
	EventConfigChanged:         ActionReloadAndRebuild,
	EventFileSaved:             ActionRefresh,
	EventDocumentEdited:        ActionRefresh,
	EventActiveDocumentChanged: ActionRefresh,
}

// Options configure a Controller.
type Options struct {
	// ConfigPath is the config file to reload and watch; empty disables
	// config reloading.
	ConfigPath string
	// Debounce is how long a changed path must stay quiet before it is
	// acted on. Zero uses the config default.
	Debounce time.Duration
	// OnRebuilt runs after every completed rebuild.
	OnRebuilt func(index.Stats)
	// OnRefresh runs for document-refresh actions with the changed path.
	OnRefresh func(path string)
}

// Controller owns the rebuild lifecycle. Rebuilds may overlap; the index's
// generation counter makes the newest one win.
type Controller struct {
	ws  *workspace.Workspace
	idx *index.Index
	res *resolver.Resolver

	opts     Options
	debounce time.Duration

	mu       sync.Mutex
	rules    []config.Rule
	inflight int

	log zerolog.Logger
}

// NewController wires the controller over an already-loaded config.
func NewController(ws *workspace.Workspace, idx *index.Index, res *resolver.Resolver, cfg *config.Config, opts Options) *Controller {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = cfg.Debounce
	}
	return &Controller{
		ws:       ws,
		idx:      idx,
		res:      res,
		opts:     opts,
		debounce: debounce,
		rules:    cfg.Rules,
		log:      logging.GetLogger("watch"),
	}
}

// State returns Idle or Rebuilding.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight > 0 {
		return StateRebuilding
	}
	return StateIdle
}

// Classify maps an event to the action it triggers.
func (c *Controller) Classify(ev Event) Action {
	act, ok := actions[ev.Kind]
	if !ok {
		return ActionNone
	}
	if ev.Kind == EventFileSaved && c.matchesDestination(ev.Path) {
		act = ActionRebuild
	}
	return act
}

// HandleEvent classifies and executes one event synchronously.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) {
	switch c.Classify(ev) {
	case ActionReloadAndRebuild:
		c.reloadConfig()
		if _, err := c.Rebuild(ctx); err != nil {
			c.log.Error().Err(err).Msg("rebuild failed")
		}
	case ActionRebuild:
		if _, err := c.Rebuild(ctx); err != nil {
			c.log.Error().Err(err).Msg("rebuild failed")
		}
	case ActionRefresh:
		c.refresh(ev.Path)
	}
}

// Rebuild runs a full index rebuild with the current rules.
func (c *Controller) Rebuild(ctx context.Context) (index.Stats, error) {
	c.track(1)
	defer c.track(-1)

	stats, err := c.idx.Rebuild(ctx, c.rulesSnapshot())
	if err != nil {
		return stats, err
	}
	if c.opts.OnRebuilt != nil {
		c.opts.OnRebuilt(stats)
	}
	return stats, nil
}

func (c *Controller) track(delta int) {
	c.mu.Lock()
	c.inflight += delta
	c.mu.Unlock()
}

func (c *Controller) rulesSnapshot() []config.Rule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules
}

func (c *Controller) matchesDestination(path string) bool {
	for _, rule := range c.rulesSnapshot() {
		for _, dest := range rule.To {
			if c.ws.MatchGlob(path, dest.Includes) {
				return true
			}
		}
	}
	return false
}

// reloadConfig re-reads the config file and swaps the rule set. A failed
// reload keeps the previous rules so the engine never goes dark over a
// half-saved config.
func (c *Controller) reloadConfig() {
	if c.opts.ConfigPath == "" {
		return
	}
	cfg, err := config.Load(c.opts.ConfigPath, c.ws.Roots())
	if err != nil {
		c.log.Error().Str("path", c.opts.ConfigPath).Err(err).
			Msg("config reload failed, keeping previous rules")
		return
	}
	c.mu.Lock()
	c.rules = cfg.Rules
	c.mu.Unlock()
	c.res.SetRules(cfg.Rules)
	c.log.Info().Int("rules", len(cfg.Rules)).Msg("config reloaded")
}

func (c *Controller) refresh(path string) {
	c.log.Debug().Str("path", path).Msg("document refresh")
	if c.opts.OnRefresh != nil {
		c.opts.OnRefresh(path)
	}
}
