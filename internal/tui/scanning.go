package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"linkdex/internal/index"
)

type scanningModel struct {
	spinner    spinner.Model
	filesDone  int
	filesTotal int
	done       bool
	stats      index.Stats
	err        error
}

func newScanningModel() scanningModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return scanningModel{spinner: sp}
}

// scanDoneMsg is sent when a manually requested rebuild completes.
type scanDoneMsg struct {
	stats index.Stats
	err   error
}

// scanProgressMsg is sent per destination file during a rebuild.
type scanProgressMsg struct {
	done  int
	total int
}

// rebuiltMsg is sent whenever the controller finishes a rebuild, including
// watcher-triggered ones.
type rebuiltMsg struct {
	stats index.Stats
}

func runScan(cfg Config) tea.Cmd {
	return func() tea.Msg {
		stats, err := cfg.ctrl.Rebuild(context.Background())
		return scanDoneMsg{stats: stats, err: err}
	}
}

func (m scanningModel) Update(msg tea.Msg) (scanningModel, tea.Cmd) {
	switch msg := msg.(type) {
	case scanDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case scanProgressMsg:
		m.filesDone = msg.done
		m.filesTotal = msg.total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m scanningModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Scanning destinations") + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += dimStyle.Render("  Press Enter to browse anyway, or q to quit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Index ready!") + "\n\n"
		s += fmt.Sprintf("  Files: %d scanned\n", m.stats.Files)
		s += fmt.Sprintf("  Keys: %d distinct, %d locations\n", m.stats.Keys, m.stats.Locations)
		s += fmt.Sprintf("  Took: %s\n", m.stats.Duration.Round(time.Millisecond))
		s += "\n"
		s += dimStyle.Render("  Press Enter to browse links") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s Scanning destination files...\n", m.spinner.View())
	if m.filesTotal > 0 {
		s += fmt.Sprintf("  %d / %d files scanned\n", m.filesDone, m.filesTotal)
	}
	s += "\n"
	s += dimStyle.Render("  Large trees with many rules may take a moment...") + "\n"
	return s
}
