// Package ui provides the full-screen views of kfold.
//
// A [Model] shows a report produced by a [RenderFunc] and re-renders it
// whenever a [RefreshMsg] arrives, for example from a filesystem watcher
// calling [tea.Program.Send]. Long reports scroll in a viewport.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/macropower/kfold/pkg/keys"
)

// RenderFunc produces the report shown by a [Model].
type RenderFunc func() (string, error)

// RefreshMsg asks a [Model] to render its report again.
type RefreshMsg struct{}

type renderedMsg struct {
	at      time.Time
	err     error
	content string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// KeyBinds are the key bindings of a [Model]. Up and Down are shown in the
// help line; scrolling itself is handled by the viewport.
type KeyBinds struct {
	Quit    keys.KeyBind
	Refresh keys.KeyBind
	Up      keys.KeyBind
	Down    keys.KeyBind
}

func DefaultKeyBinds() KeyBinds {
	return KeyBinds{
		Quit: keys.NewBind("quit",
			keys.New("q"),
			keys.New("esc", keys.Hidden()),
			keys.New("ctrl+c", keys.Hidden()),
		),
		Refresh: keys.NewBind("refresh", keys.New("r")),
		Up:      keys.NewBind("up", keys.New("up", keys.WithAlias("↑")), keys.New("k", keys.Hidden())),
		Down:    keys.NewBind("down", keys.New("down", keys.WithAlias("↓")), keys.New("j", keys.Hidden())),
	}
}

// Validate reports keys bound more than once.
func (kb KeyBinds) Validate() error {
	return keys.ValidateBinds(kb.Quit, kb.Refresh, kb.Up, kb.Down) //nolint:wrapcheck // Already wrapped.
}

// Model is a Bubble Tea model showing a periodically refreshed report.
type Model struct {
	updated    time.Time
	err        error
	render     RenderFunc
	title      string
	content    string
	kb         KeyBinds
	spinner    spinner.Model
	viewport   viewport.Model
	width      int
	height     int
	refreshing bool
	ready      bool
}

// ModelOpt configures a [Model].
type ModelOpt func(*Model)

// WithKeyBinds replaces the default key bindings.
func WithKeyBinds(kb KeyBinds) ModelOpt {
	return func(m *Model) {
		m.kb = kb
	}
}

// NewModel creates a [Model] titled title that shows the output of render.
func NewModel(title string, render RenderFunc, opts ...ModelOpt) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = statusStyle

	m := Model{
		title:      title,
		render:     render,
		kb:         DefaultKeyBinds(),
		spinner:    sp,
		viewport:   viewport.New(0, 0),
		refreshing: true,
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

func (m Model) refresh() tea.Cmd {
	render := m.render

	return func() tea.Msg {
		content, err := render()

		return renderedMsg{content: content, err: err, at: time.Now()}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()

		switch {
		case m.kb.Quit.Match(key):
			return m, tea.Quit

		case m.kb.Refresh.Match(key):
			m.refreshing = true
			return m, tea.Batch(m.spinner.Tick, m.refresh())
		}

	case RefreshMsg:
		if m.refreshing {
			return m, nil
		}

		m.refreshing = true

		return m, tea.Batch(m.spinner.Tick, m.refresh())

	case renderedMsg:
		m.refreshing = false
		m.updated = msg.at
		m.err = msg.err
		m.content = msg.content
		m.viewport.SetContent(m.body())

		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-2)
		m.viewport.SetContent(m.body())
		m.ready = true

		return m, nil

	case spinner.TickMsg:
		if !m.refreshing {
			return m, nil
		}

		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

func (m Model) body() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	return strings.TrimRight(m.content, "\n")
}

// Err returns the error of the most recent render.
func (m Model) Err() error {
	return m.err
}

func (m Model) View() string {
	status := "rendering"
	if m.refreshing {
		status = m.spinner.View() + " " + status
	} else if !m.updated.IsZero() {
		status = "updated " + m.updated.Format(time.TimeOnly)
	}

	header := titleStyle.Render(m.title) + statusStyle.Render(status)
	help := helpStyle.Render(keys.Help(m.width, m.kb.Quit, m.kb.Refresh, m.kb.Up, m.kb.Down))

	if !m.ready {
		return header + "\n" + m.body() + "\n" + help
	}

	return header + "\n" + m.viewport.View() + "\n" + help
}

// program adapts [Model] to [tea.Model].
type program struct {
	model Model
}

func (p program) Init() tea.Cmd { return p.model.Init() }

//nolint:ireturn // Must satisfy [tea.Model].
func (p program) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := p.model.Update(msg)

	return program{model: m}, cmd
}

func (p program) View() string { return p.model.View() }

// NewProgram returns a full-screen program running m.
func NewProgram(m Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(program{model: m}, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}

// Run runs p until the user quits or its context is canceled. Cancellation
// is not an error.
func Run(p *tea.Program) error {
	_, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run view: %w", err)
	}

	return nil
}
