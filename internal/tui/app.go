package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/quantmind-br/remotefetch/internal/config"
)

type view int

const (
	viewMenu view = iota
	viewForm
	viewConfirm
	viewSaved
	viewFailed
)

// Model is the bubbletea model of the configuration editor
type Model struct {
	view       view
	values     *ConfigValues
	baseline   ConfigValues
	cursor     int
	form       *huh.Form
	path       string
	save       func(*config.Config) error
	accessible bool
	err        error
}

// Options configures the configuration editor
type Options struct {
	Config *config.Config
	// Path is shown under the title; saving is up to SaveFunc
	Path       string
	SaveFunc   func(*config.Config) error
	Accessible bool
	// Input and Output default to the terminal
	Input  io.Reader
	Output io.Writer
}

func NewModel(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	values := FromConfig(cfg)

	return Model{
		view:       viewMenu,
		values:     values,
		baseline:   *values,
		path:       opts.Path,
		save:       opts.SaveFunc,
		accessible: opts.Accessible,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Dirty reports whether any value differs from what the editor was opened with
func (m Model) Dirty() bool {
	return *m.values != m.baseline
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch m.view {
		case viewMenu:
			return m.updateMenu(key)
		case viewConfirm:
			return m.updateConfirm(key)
		case viewSaved, viewFailed:
			return m, tea.Quit
		case viewForm:
			if key.Type == tea.KeyEsc {
				m.view = viewMenu
				m.form = nil
				return m, nil
			}
		}
	}

	if m.view == viewForm && m.form != nil {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.form.Update(msg)
	if f, ok := next.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted, huh.StateAborted:
		m.view = viewMenu
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(Categories) {
			m.cursor++
		}

	case "enter":
		if m.cursor == len(Categories) {
			return m.handleSave()
		}
		return m.openForm(Categories[m.cursor].ID)

	case "r":
		if m.cursor < len(Categories) {
			m.values.reset(Categories[m.cursor].ID, FromConfig(config.Default()))
		}

	case "s":
		return m.handleSave()

	case "q", "esc", "ctrl+c":
		if m.Dirty() {
			m.view = viewConfirm
			return m, nil
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) openForm(categoryID string) (tea.Model, tea.Cmd) {
	form := GetFormForCategory(categoryID, m.values)
	if form == nil {
		return m, nil
	}
	form = form.WithTheme(formTheme(m.accessible))
	if m.accessible {
		form = form.WithAccessible(true)
	}
	m.form = form
	m.view = viewForm
	return m, form.Init()
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m.handleSave()
	case "n", "N":
		return m, tea.Quit
	case "c", "esc":
		m.view = viewMenu
	}
	return m, nil
}

func (m Model) handleSave() (tea.Model, tea.Cmd) {
	cfg, err := m.values.ToConfig()
	if err == nil && m.save != nil {
		err = m.save(cfg)
	}
	if err != nil {
		m.view = viewFailed
		m.err = err
		return m, nil
	}

	// Validate may have normalized values
	*m.values = *FromConfig(cfg)
	m.baseline = *m.values
	m.view = viewSaved
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("remotefetch configuration"))
	s.WriteString("\n")
	if m.path != "" {
		s.WriteString(PathStyle.Render(m.path))
	}
	s.WriteString("\n\n")

	switch m.view {
	case viewMenu:
		s.WriteString(m.renderMenu())
	case viewForm:
		if m.form != nil {
			s.WriteString(m.form.View())
		}
	case viewConfirm:
		s.WriteString(ConfirmStyle.Render("Unsaved changes.\n\nSave before quitting?\n\n[y] save  [n] discard  [c] back"))
	case viewSaved:
		s.WriteString(SuccessStyle.Render("Configuration saved."))
		s.WriteString("\n\nPress any key to exit.")
	case viewFailed:
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\nPress any key to exit.")
	}

	return s.String()
}

func (m Model) renderMenu() string {
	var s strings.Builder

	for i, cat := range Categories {
		cursor, style := "  ", UnselectedStyle
		if i == m.cursor {
			cursor, style = "> ", SelectedStyle
		}
		s.WriteString(style.Render(cursor + cat.Name))
		s.WriteString("  ")
		s.WriteString(SummaryStyle.Render(m.values.summary(cat.ID)))
		if m.values.category(cat.ID) != m.baseline.category(cat.ID) {
			s.WriteString(ModifiedStyle.Render(" (modified)"))
		}
		s.WriteString("\n")
	}

	cursor, style := "  ", UnselectedStyle
	if m.cursor == len(Categories) {
		cursor, style = "> ", SelectedStyle
	}
	save := cursor + "Save"
	if m.Dirty() {
		save += " *"
	}
	s.WriteString("\n")
	s.WriteString(style.Render(save))
	s.WriteString("\n")

	s.WriteString(HelpStyle.Render("↑/↓ navigate • enter edit • r reset to defaults • s save • q quit"))
	return s.String()
}

// Run starts the configuration editor and blocks until it exits
func Run(ctx context.Context, opts Options) error {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	final, err := tea.NewProgram(NewModel(opts), progOpts...).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
