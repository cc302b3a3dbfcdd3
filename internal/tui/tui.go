package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"linkdex/internal/config"
	"linkdex/internal/index"
	"linkdex/internal/providers"
	"linkdex/internal/resolver"
	"linkdex/internal/watch"
	"linkdex/internal/workspace"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewScanning ViewState = iota
	ViewBrowser
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

// Config holds the engine handles passed from the CLI layer.
type Config struct {
	Workspace *workspace.Workspace
	Index     *index.Index
	Resolver  *resolver.Resolver
	Providers *providers.Providers
	Rules     *config.Config

	// ConfigPath enables rule reloads when the file changes under Watch.
	ConfigPath string
	// Watch keeps the index fresh while the browser is open.
	Watch bool

	// program and ctrl are set internally so commands can reach them.
	program *programRef
	ctrl    *watch.Controller
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	scanning scanningModel
	browser  browserModel
	err      error
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	return Model{
		state:    ViewScanning,
		config:   cfg,
		scanning: newScanningModel(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.scanning.spinner.Tick, runScan(m.config))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewBrowser {
			var c tea.Cmd
			m.browser, c = m.browser.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		// Global quit.
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewBrowser || !m.browser.filtering {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewScanning:
		m.scanning, cmd = m.scanning.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		// Handle Enter to transition.
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.scanning.done {
			m.transitionToBrowser()
			return m, nil
		}

	case ViewBrowser:
		m.browser, cmd = m.browser.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) transitionToBrowser() {
	m.browser = newBrowserModel(m.config)
	m.browser.initLayout(m.width, m.height)
	m.browser.reload()
	m.state = ViewBrowser
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewScanning:
		return m.scanning.View(m.width, m.height)
	case ViewBrowser:
		return m.browser.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program.
func Run(cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	cfg.ctrl = watch.NewController(cfg.Workspace, cfg.Index, cfg.Resolver, cfg.Rules, watch.Options{
		ConfigPath: cfg.ConfigPath,
		OnRebuilt: func(stats index.Stats) {
			if ref.p != nil {
				ref.p.Send(rebuiltMsg{stats: stats})
			}
		},
	})
	cfg.Index.OnProgress = func(done, total int) {
		if ref.p != nil {
			ref.p.Send(scanProgressMsg{done: done, total: total})
		}
	}

	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Watch {
		go func() {
			if err := cfg.ctrl.Run(ctx); err != nil {
				p.Send(scanDoneMsg{err: err})
			}
		}()
	}

	_, err := p.Run()
	return err
}
