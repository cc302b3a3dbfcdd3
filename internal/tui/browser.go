package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"linkdex/internal/resolver"
)

type linkItem struct {
	display string
	link    resolver.Link
}

type browserModel struct {
	cfg         Config
	all         []linkItem
	items       []linkItem
	cursor      int
	filter      textinput.Model
	filtering   bool
	preview     viewport.Model
	renderer    *glamour.TermRenderer
	status      string
	rebuilding  bool
	width       int
	height      int
	initialized bool
}

func newBrowserModel(cfg Config) browserModel {
	ti := textinput.New()
	ti.Placeholder = "Filter by key, file, or rule..."
	ti.CharLimit = 200

	return browserModel{
		cfg:    cfg,
		filter: ti,
	}
}

func (m *browserModel) initLayout(width, height int) {
	m.width = width
	m.height = height

	_, previewW := m.paneWidths()

	// Layout: list and preview side by side, then status bar and filter line.
	bodyHeight := height - 3
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	m.preview = viewport.New(previewW, bodyHeight)

	m.filter.Width = width - 4

	// Create glamour renderer matched to the preview width.
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(previewW-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func (m *browserModel) paneWidths() (list, preview int) {
	list = m.width * 2 / 5
	if list < 30 {
		list = 30
	}
	preview = m.width - list - 1
	if preview < 20 {
		preview = 20
	}
	return list, preview
}

// reload flattens the workspace links into the browsable list, keeping the
// cursor in range.
func (m *browserModel) reload() {
	m.all = m.all[:0]
	for _, fl := range m.cfg.Providers.WorkspaceLinks() {
		display := m.cfg.Workspace.DisplayPath(fl.Path)
		for _, link := range fl.Links {
			m.all = append(m.all, linkItem{display: display, link: link})
		}
	}
	m.applyFilter()
}

func (m *browserModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if query == "" {
		m.items = m.all
	} else {
		m.items = nil
		for _, it := range m.all {
			hay := strings.ToLower(it.link.Source.Key + " " + it.display + " " + it.link.Rule)
			if strings.Contains(hay, query) {
				m.items = append(m.items, it)
			}
		}
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.updatePreview()
}

func (m *browserModel) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.updatePreview()
}

func (m *browserModel) updatePreview() {
	if !m.initialized {
		return
	}
	if len(m.items) == 0 {
		m.preview.SetContent(dimStyle.Render("No links to show."))
		return
	}
	it := m.items[m.cursor]
	h := m.cfg.Providers.LinkHover(it.link)
	if h == nil {
		m.preview.SetContent(dimStyle.Render("Preview disabled for this rule."))
		return
	}
	m.preview.SetContent(m.renderMarkdown(h.Markdown))
	m.preview.GotoTop()
}

func (m browserModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func (m browserModel) Update(msg tea.Msg) (browserModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initLayout(msg.Width, msg.Height)
		m.updatePreview()
		return m, nil

	case scanDoneMsg:
		m.rebuilding = false
		if msg.err != nil {
			m.status = "rebuild failed: " + msg.err.Error()
			return m, nil
		}
		m.reload()
		m.status = rebuildStatus(msg.stats.Keys, msg.stats.Locations, msg.stats.Duration)
		return m, nil

	case rebuiltMsg:
		m.rebuilding = false
		m.reload()
		m.status = rebuildStatus(msg.stats.Keys, msg.stats.Locations, msg.stats.Duration)
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.Type {
			case tea.KeyEsc:
				m.filtering = false
				m.filter.Blur()
				return m, nil
			case tea.KeyEnter:
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "j", "down":
			m.moveCursor(1)
			return m, nil
		case "k", "up":
			m.moveCursor(-1)
			return m, nil
		case "g":
			m.moveCursor(-len(m.items))
			return m, nil
		case "G":
			m.moveCursor(len(m.items))
			return m, nil
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, nil
		case "esc":
			if m.filter.Value() != "" {
				m.filter.Reset()
				m.applyFilter()
			}
			return m, nil
		case "r":
			if m.rebuilding {
				return m, nil
			}
			m.rebuilding = true
			return m, runScan(m.cfg)
		}
	}

	// Remaining keys scroll the preview.
	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func rebuildStatus(keys, locations int, d time.Duration) string {
	return fmt.Sprintf("rebuilt in %s: %d keys, %d locations", d.Round(time.Millisecond), keys, locations)
}

func (m browserModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	listW, _ := m.paneWidths()
	bodyHeight := m.height - 3
	if bodyHeight < 5 {
		bodyHeight = 5
	}

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(listW, bodyHeight),
		" ",
		m.preview.View(),
	)

	broken := 0
	for _, it := range m.all {
		if it.link.Broken() {
			broken++
		}
	}
	state := "idle"
	if m.rebuilding {
		state = "rebuilding..."
	} else if m.status != "" {
		state = m.status
	}
	brokenLabel := fmt.Sprintf("%d broken", broken)
	if broken > 0 {
		brokenLabel = warnStyle.Render(brokenLabel)
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" linkdex • %d links • %s • %s", len(m.all), brokenLabel, state))

	var bottom string
	if m.filtering {
		bottom = m.filter.View()
	} else if m.filter.Value() != "" {
		bottom = helpStyle.Render(fmt.Sprintf(" filter: %q • esc clear • j/k move • r rebuild • q quit", m.filter.Value()))
	} else {
		bottom = helpStyle.Render(" j/k move • / filter • r rebuild • q quit")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		body,
		statusBar,
		bottom,
	)
}

// renderList draws the visible window of link rows, keeping the cursor on
// screen.
func (m browserModel) renderList(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Links") + "\n")

	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	top := 0
	if m.cursor >= rows {
		top = m.cursor - rows + 1
	}

	if len(m.items) == 0 {
		sb.WriteString(dimStyle.Render("  no links match"))
		return lipgloss.NewStyle().Width(width).Render(sb.String())
	}

	end := top + rows
	if end > len(m.items) {
		end = len(m.items)
	}
	for i := top; i < end; i++ {
		it := m.items[i]
		icon := successStyle.Render("✓")
		if it.link.Broken() {
			icon = errorStyle.Render("✗")
		}
		where := fmt.Sprintf("%s:%d", it.display, it.link.Source.Range.Start.Line+1)
		label := truncate(it.link.Source.Key, width-len(where)-8)
		if i == m.cursor {
			sb.WriteString(fmt.Sprintf("%s %s %s  %s\n",
				selectedStyle.Render(">"), icon, selectedStyle.Render(label), dimStyle.Render(where)))
		} else {
			sb.WriteString(fmt.Sprintf("  %s %s  %s\n",
				icon, listItemStyle.Render(label), dimStyle.Render(where)))
		}
	}
	return lipgloss.NewStyle().Width(width).Render(sb.String())
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
