package providers

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/resolver"
	"linkdex/internal/workspace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture builds a workspace with a registry destination and wires the full
// provider stack over it.
func fixture(t *testing.T, rules ...config.Rule) (string, *Providers) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "registry.md"), "# Registry\n- id: abc\n- id: dup\n")
	writeFile(t, filepath.Join(root, "other.md"), "- id: dup\n")
	writeFile(t, filepath.Join(root, "notes.md"), "see ref:abc and ref:gone\n")

	ws := workspace.New([]string{root})
	ix := index.New(ws)
	_, err := ix.Rebuild(context.Background(), rules)
	require.NoError(t, err)
	res := resolver.New(ws, ix)
	res.SetRules(rules)
	return root, New(ws, res)
}

func refRule(preview config.Preview) config.Rule {
	return config.Rule{
		Name: "refs",
		From: []config.SourceDescriptor{
			{Includes: "notes.md", Pattern: regexp.MustCompile(`ref:(\S+)`)},
		},
		To: []config.DestinationDescriptor{
			{Includes: "*.md", Pattern: regexp.MustCompile(`- id: (\S+)`), Preview: preview},
		},
	}
}

func loadDoc(t *testing.T, root, name string) *workspace.Document {
	t.Helper()
	doc, err := workspace.LoadDocument(filepath.Join(root, name))
	require.NoError(t, err)
	return doc
}

func TestDocumentLinks(t *testing.T) {
	root, p := fixture(t, refRule(config.DefaultPreview()))
	doc := loadDoc(t, root, "notes.md")

	links := p.DocumentLinks(doc)
	require.Len(t, links, 1, "broken matches produce no document link")

	assert.Equal(t, resolver.Position{Line: 0, Col: 4}, links[0].Range.Start)
	assert.True(t, strings.HasPrefix(links[0].Target, "file://"))
	assert.True(t, strings.HasSuffix(links[0].Target, "registry.md"))
	assert.Equal(t, "Follow link to registry.md:2", links[0].Tooltip)
}

func TestDefinition(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "registry.md"), "- id: dup\n")
	writeFile(t, filepath.Join(root, "other.md"), "- id: dup\n")
	writeFile(t, filepath.Join(root, "notes.md"), "ref:dup then ref:gone\n")

	ws := workspace.New([]string{root})
	rules := []config.Rule{refRule(config.DefaultPreview())}
	ix := index.New(ws)
	_, err := ix.Rebuild(context.Background(), rules)
	require.NoError(t, err)
	res := resolver.New(ws, ix)
	res.SetRules(rules)
	p := New(ws, res)

	doc := loadDoc(t, root, "notes.md")

	// Every indexed location for the key comes back, not just the first.
	locs := p.Definition(doc, resolver.Position{Line: 0, Col: 5})
	require.Len(t, locs, 2)
	assert.NotEqual(t, locs[0].File, locs[1].File)

	// Broken link yields nothing.
	assert.Empty(t, p.Definition(doc, resolver.Position{Line: 0, Col: 15}))
	// Off-link position yields nothing.
	assert.Empty(t, p.Definition(doc, resolver.Position{Line: 0, Col: 8}))
}

func TestHoverResolved(t *testing.T) {
	root, p := fixture(t, refRule(config.Preview{LinesBefore: 1, LinesAfter: 1, Hover: true}))
	doc := loadDoc(t, root, "notes.md")

	h := p.Hover(doc, resolver.Position{Line: 0, Col: 6})
	require.NotNil(t, h)
	assert.Contains(t, h.Markdown, "registry.md:2")
	assert.Contains(t, h.Markdown, "```markdown")
	assert.Contains(t, h.Markdown, "- id: abc")
	assert.Contains(t, h.Markdown, "# Registry", "window includes the line before")
	assert.Equal(t, resolver.Position{Line: 0, Col: 4}, h.Range.Start)
}

func TestHoverDisabled(t *testing.T) {
	root, p := fixture(t, refRule(config.Preview{LinesBefore: 2, LinesAfter: 2, Hover: false}))
	doc := loadDoc(t, root, "notes.md")

	assert.Nil(t, p.Hover(doc, resolver.Position{Line: 0, Col: 6}))
}

func TestHoverBroken(t *testing.T) {
	root, p := fixture(t, refRule(config.Preview{Hover: false}))
	doc := loadDoc(t, root, "notes.md")

	// The broken notice shows even when hover is disabled for resolved links.
	h := p.Hover(doc, resolver.Position{Line: 0, Col: 18})
	require.NotNil(t, h)
	assert.Contains(t, h.Markdown, "Broken Link")
	assert.Contains(t, h.Markdown, "gone")
}

func TestHoverOffLink(t *testing.T) {
	root, p := fixture(t, refRule(config.DefaultPreview()))
	doc := loadDoc(t, root, "notes.md")

	assert.Nil(t, p.Hover(doc, resolver.Position{Line: 0, Col: 0}))
}

func TestDecorations(t *testing.T) {
	pv := config.DefaultPreview()
	pv.Editor = regexp.MustCompile(`(?m)^# (.+)$`)
	root, p := fixture(t, refRule(pv))
	doc := loadDoc(t, root, "notes.md")

	deco := p.Decorations(doc)
	require.Len(t, deco.Resolved, 1)
	require.Len(t, deco.Broken, 1)
	assert.Equal(t, resolver.Position{Line: 0, Col: 4}, deco.Resolved[0].Start)
	assert.Equal(t, resolver.Position{Line: 0, Col: 16}, deco.Broken[0].Start)

	// The editor pattern lifts the heading out of the preview window.
	require.Len(t, deco.Inline, 1)
	assert.Equal(t, "Registry", deco.Inline[0].Text)
	assert.Equal(t, deco.Resolved[0], deco.Inline[0].Range)
}

func TestDecorationsNoEditorPattern(t *testing.T) {
	root, p := fixture(t, refRule(config.DefaultPreview()))
	doc := loadDoc(t, root, "notes.md")

	deco := p.Decorations(doc)
	assert.Len(t, deco.Resolved, 1)
	assert.Empty(t, deco.Inline)
}

func TestWorkspaceLinks(t *testing.T) {
	root, p := fixture(t, refRule(config.DefaultPreview()))
	// registry.md and other.md match no source glob; only notes.md has links.
	files := p.WorkspaceLinks()
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "notes.md"), files[0].Path)
	require.Len(t, files[0].Links, 2)
	assert.False(t, files[0].Links[0].Broken())
	assert.True(t, files[0].Links[1].Broken())
}
