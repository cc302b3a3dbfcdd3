package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/resolver"
	"linkdex/internal/workspace"
)

const testConfig = `
[[rules]]
name = "ids"

[[rules.from]]
includes = "**/*.md"
patterns = 'ref:(\S+)'

[[rules.to]]
includes = "registry/**"
patterns = '- id: (\S+)'
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setup writes a config file plus a registry destination and returns a
// controller wired over them.
func setup(t *testing.T, opts Options) (string, *Controller, *index.Index, *resolver.Resolver) {
	t.Helper()
	root := t.TempDir()
	cfgPath := filepath.Join(root, "linkdex.toml")
	writeFile(t, cfgPath, testConfig)
	writeFile(t, filepath.Join(root, "registry", "items.md"), "- id: abc\n")

	cfg, err := config.Load(cfgPath, []string{root})
	require.NoError(t, err)

	ws := workspace.New(cfg.Roots)
	ix := index.New(ws)
	res := resolver.New(ws, ix)
	res.SetRules(cfg.Rules)

	if opts.ConfigPath == "" {
		opts.ConfigPath = cfgPath
	}
	return root, NewController(ws, ix, res, cfg, opts), ix, res
}

func TestClassify(t *testing.T) {
	root, c, _, _ := setup(t, Options{})

	tests := []struct {
		name string
		ev   Event
		want Action
	}{
		{"config change reloads and rebuilds", Event{Kind: EventConfigChanged}, ActionReloadAndRebuild},
		{"destination save rebuilds", Event{Kind: EventFileSaved, Path: filepath.Join(root, "registry", "items.md")}, ActionRebuild},
		{"unrelated save refreshes", Event{Kind: EventFileSaved, Path: filepath.Join(root, "notes.md")}, ActionRefresh},
		{"edit refreshes", Event{Kind: EventDocumentEdited, Path: filepath.Join(root, "registry", "items.md")}, ActionRefresh},
		{"editor switch refreshes", Event{Kind: EventActiveDocumentChanged}, ActionRefresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.ev))
		})
	}
}

func TestRebuildCallback(t *testing.T) {
	var got index.Stats
	_, c, ix, _ := setup(t, Options{OnRebuilt: func(s index.Stats) { got = s }})

	stats, err := c.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats, got)
	assert.Equal(t, 1, stats.Keys)
	assert.True(t, ix.HasDestination("abc"))
	assert.Equal(t, StateIdle, c.State())
}

func TestHandleEventDestinationSave(t *testing.T) {
	root, c, ix, _ := setup(t, Options{})
	path := filepath.Join(root, "registry", "items.md")

	c.HandleEvent(context.Background(), Event{Kind: EventFileSaved, Path: path})
	assert.True(t, ix.HasDestination("abc"))

	// The rebuild picks up the new file content wholesale.
	writeFile(t, path, "- id: xyz\n")
	c.HandleEvent(context.Background(), Event{Kind: EventFileSaved, Path: path})
	assert.True(t, ix.HasDestination("xyz"))
	assert.False(t, ix.HasDestination("abc"))
}

func TestHandleEventRefreshOnly(t *testing.T) {
	var refreshed []string
	root, c, ix, _ := setup(t, Options{OnRefresh: func(p string) { refreshed = append(refreshed, p) }})

	path := filepath.Join(root, "notes.md")
	c.HandleEvent(context.Background(), Event{Kind: EventDocumentEdited, Path: path})

	assert.Equal(t, []string{path}, refreshed)
	assert.False(t, ix.HasDestination("abc"), "refresh must not rebuild")
}

func TestConfigReloadSwapsRules(t *testing.T) {
	root, c, ix, res := setup(t, Options{})
	cfgPath := filepath.Join(root, "linkdex.toml")

	c.HandleEvent(context.Background(), Event{Kind: EventConfigChanged, Path: cfgPath})
	require.Len(t, res.Rules(), 1)
	assert.True(t, ix.HasDestination("abc"))

	// New config points destinations at a different pattern.
	writeFile(t, cfgPath, `
[[rules]]
[[rules.from]]
includes = "**/*.md"
patterns = 'ref:(\S+)'
[[rules.to]]
includes = "registry/**"
patterns = 'id: (\S+)'

[[rules]]
[[rules.from]]
includes = "**/*.txt"
patterns = 'see (\S+)'
[[rules.to]]
includes = "**/*.txt"
patterns = '^(\S+):'
`)
	c.HandleEvent(context.Background(), Event{Kind: EventConfigChanged, Path: cfgPath})

	assert.Len(t, res.Rules(), 2)
	assert.True(t, ix.HasDestination("abc"))
}

func TestConfigReloadFailureKeepsRules(t *testing.T) {
	root, c, _, res := setup(t, Options{})
	cfgPath := filepath.Join(root, "linkdex.toml")

	c.HandleEvent(context.Background(), Event{Kind: EventConfigChanged, Path: cfgPath})
	before := res.Rules()
	require.Len(t, before, 1)

	writeFile(t, cfgPath, "[[rules]\nbroken toml")
	c.HandleEvent(context.Background(), Event{Kind: EventConfigChanged, Path: cfgPath})

	assert.Equal(t, before, res.Rules())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "rebuilding", StateRebuilding.String())
}

func TestRunDetectsDestinationChange(t *testing.T) {
	root, c, ix, _ := setup(t, Options{Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Give the watcher a moment to establish watches.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(root, "registry", "new.md"), "- id: fresh\n")

	require.Eventually(t, func() bool {
		return ix.HasDestination("fresh")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunDetectsConfigChange(t *testing.T) {
	root, c, ix, _ := setup(t, Options{Debounce: 50 * time.Millisecond})
	cfgPath := filepath.Join(root, "linkdex.toml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	// Widen the destination glob so the whole root is indexed.
	writeFile(t, cfgPath, `
[[rules]]
[[rules.from]]
includes = "**/*.md"
patterns = 'ref:(\S+)'
[[rules.to]]
includes = "**/*.md"
patterns = '- id: (\S+)'
`)
	writeFile(t, filepath.Join(root, "extra.md"), "- id: outside\n")

	require.Eventually(t, func() bool {
		return ix.HasDestination("outside")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
