package index

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdex/internal/config"
	"linkdex/internal/workspace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func destRule(fromPat, toGlob, toPat string) config.Rule {
	return config.Rule{
		Name: "test",
		From: []config.SourceDescriptor{
			{Includes: "**/*.md", Pattern: regexp.MustCompile(fromPat)},
		},
		To: []config.DestinationDescriptor{
			{Includes: toGlob, Pattern: regexp.MustCompile(toPat), Preview: config.DefaultPreview()},
		},
	}
}

func rebuild(t *testing.T, root string, rules ...config.Rule) *Index {
	t.Helper()
	ix := New(workspace.New([]string{root}))
	_, err := ix.Rebuild(context.Background(), rules)
	require.NoError(t, err)
	return ix
}

func TestExtractKey(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		want    string
	}{
		{"capture group wins over whole match", `## (.+)$`, "## Section One", "Section One"},
		{"no capture group falls back to whole match", `TODO-\d+`, "see TODO-17 here", "TODO-17"},
		{"key is trimmed", `id:(.*)`, "id:  abc  ", "abc"},
		{"whitespace-only group trims to empty", `id:(\s*)$`, "id:  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := regexp.MustCompile(tt.pattern)
			m := re.FindStringSubmatchIndex(tt.text)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, ExtractKey(tt.text, m))
		})
	}
}

func TestRebuildCaptureGroupKey(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "intro\n## Section One\nbody\n")

	ix := rebuild(t, root, destRule(`\[\[(.+?)\]\]`, "**/*.md", `^## (.+)$`))

	assert.True(t, ix.HasDestination("Section One"))
	assert.False(t, ix.HasDestination("## Section One"))

	locs := ix.Destinations("Section One")
	require.Len(t, locs, 1)
	assert.Equal(t, filepath.Join(root, "doc.md"), locs[0].File)
	assert.Equal(t, 1, locs[0].Line)
	assert.Equal(t, 0, locs[0].StartCol)
	assert.Equal(t, len("## Section One"), locs[0].EndCol)
}

func TestRebuildUUIDKeys(t *testing.T) {
	root := t.TempDir()
	const id = "5febf105-829a-4e5f-a380-2a1e09d39b1f"
	writeFile(t, filepath.Join(root, "registry.md"), "- id: "+id+"\n")

	ix := rebuild(t, root, destRule(`ref:(\S+)`, "**/*.md", `- id: (\S+)`))
	assert.True(t, ix.HasDestination(id))
}

func TestRebuildEmptyKeysNotIndexed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "id:   \nid: real\n")

	ix := rebuild(t, root, destRule(`x`, "**/*.md", `id:(.*)$`))

	assert.True(t, ix.HasDestination("real"))
	assert.Equal(t, 1, ix.Stats().Keys)
}

func TestRebuildFirstMatchPerLine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "ID-1 and ID-2 on one line\n")

	ix := rebuild(t, root, destRule(`x`, "**/*.md", `ID-\d+`))

	assert.True(t, ix.HasDestination("ID-1"))
	assert.False(t, ix.HasDestination("ID-2"))
}

func TestRebuildMultipleDestinations(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "anchor: shared\n")
	writeFile(t, filepath.Join(root, "b.md"), "prefix\nanchor: shared\n")

	ix := rebuild(t, root, destRule(`x`, "**/*.md", `anchor: (\S+)`))

	locs := ix.Destinations("shared")
	require.Len(t, locs, 2)
	// Deterministic order: by file, then line.
	assert.Equal(t, filepath.Join(root, "a.md"), locs[0].File)
	assert.Equal(t, filepath.Join(root, "b.md"), locs[1].File)
	assert.Equal(t, 0, locs[0].Line)
	assert.Equal(t, 1, locs[1].Line)
}

func TestRebuildOverlappingDescriptorsDedupe(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "anchor: one\n")

	// Two rules index the same files with the same pattern.
	ruleA := destRule(`x`, "**/*.md", `anchor: (\S+)`)
	ruleB := destRule(`y`, "**/*.md", `anchor: (\S+)`)
	ix := rebuild(t, root, ruleA, ruleB)

	assert.Len(t, ix.Destinations("one"), 1)
}

func TestRebuildIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "anchor: k1\nanchor: k2\n")
	writeFile(t, filepath.Join(root, "b.md"), "anchor: k1\n")

	rule := destRule(`x`, "**/*.md", `anchor: (\S+)`)
	ix := New(workspace.New([]string{root}))

	_, err := ix.Rebuild(context.Background(), []config.Rule{rule})
	require.NoError(t, err)
	first := map[string][]Location{
		"k1": ix.Destinations("k1"),
		"k2": ix.Destinations("k2"),
	}
	firstStats := ix.Stats()

	_, err = ix.Rebuild(context.Background(), []config.Rule{rule})
	require.NoError(t, err)

	assert.Equal(t, first["k1"], ix.Destinations("k1"))
	assert.Equal(t, first["k2"], ix.Destinations("k2"))
	assert.Equal(t, firstStats.Keys, ix.Stats().Keys)
	assert.Equal(t, firstStats.Locations, ix.Stats().Locations)
}

func TestRebuildDropsStaleEntries(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	writeFile(t, path, "anchor: old\n")

	rule := destRule(`x`, "**/*.md", `anchor: (\S+)`)
	ix := New(workspace.New([]string{root}))

	_, err := ix.Rebuild(context.Background(), []config.Rule{rule})
	require.NoError(t, err)
	assert.True(t, ix.HasDestination("old"))

	writeFile(t, path, "anchor: new\n")
	_, err = ix.Rebuild(context.Background(), []config.Rule{rule})
	require.NoError(t, err)

	assert.False(t, ix.HasDestination("old"))
	assert.True(t, ix.HasDestination("new"))
}

func TestRebuildEmptyRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "anchor: k\n")

	ix := rebuild(t, root)
	stats := ix.Stats()
	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 0, stats.Keys)
	assert.Equal(t, 0, stats.Locations)
}

func TestRebuildStats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "anchor: k1\n")
	writeFile(t, filepath.Join(root, "b.md"), "anchor: k1\nanchor: k2\n")

	ix := rebuild(t, root, destRule(`x`, "**/*.md", `anchor: (\S+)`))
	stats := ix.Stats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 3, stats.Locations)
	assert.Equal(t, uint64(1), stats.Generation)
}

func TestRebuildCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "anchor: k\n")

	ix := New(workspace.New([]string{root}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Rebuild(ctx, []config.Rule{destRule(`x`, "**/*.md", `anchor: (\S+)`)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupersededRebuildDiscarded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "doc.md"), "anchor: k\n")

	ix := New(workspace.New([]string{root}))
	stale := ix.beginGeneration()

	// A newer rebuild claims the table; the stale generation's inserts
	// and finalize must not touch it.
	_, err := ix.Rebuild(context.Background(), []config.Rule{destRule(`x`, "**/*.md", `anchor: (\S+)`)})
	require.NoError(t, err)

	ix.add(stale, "ghost", Location{File: "ghost.md"})
	_, current := ix.finalize(stale, 1, time.Now())

	assert.False(t, current)
	assert.False(t, ix.HasDestination("ghost"))
	assert.True(t, ix.HasDestination("k"))
}
