package cli

import (
	"context"
	"fmt"
	"os"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"

	"github.com/raphaelgruber/recap/internal/history"
)

// pageMsg carries one completed page fetch.
type pageMsg history.PageProgress

// doneMsg signals that the background work finished.
type doneMsg struct {
	err error
}

// progressModel is the bubbletea model for history retrieval.
type progressModel struct {
	label    string
	last     history.PageProgress
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(label string, target int) progressModel {
	return progressModel{
		label: label,
		last:  history.PageProgress{Target: target},
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case pageMsg:
		m.last = history.PageProgress(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) percent() float64 {
	if m.last.Target <= 0 {
		return 0
	}
	return min(float64(m.last.Collected)/float64(m.last.Target), 1)
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return ""
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.label))
	counts := fmt.Sprintf("page %d, %d/%d messages", m.last.Page, m.last.Collected, m.last.Target)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")
	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(m.percent()), counts, hint)
}

// interactive reports whether a progress bar can be drawn on stderr.
var interactive = func() bool {
	return !verbose && term.IsTerminal(int(os.Stderr.Fd()))
}

// withProgress runs work while drawing a page progress bar on stderr. The
// onPage callback handed to work feeds the bar. When stderr is not a
// terminal, work runs without a UI.
func withProgress(ctx context.Context, label string, target int, work func(ctx context.Context, onPage func(history.PageProgress)) error) error {
	if !interactive() {
		return work(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(label, target),
		tea.WithOutput(os.Stderr),
		tea.WithContext(ctx),
	)

	result := make(chan error, 1)
	go func() {
		err := work(ctx, func(pp history.PageProgress) { p.Send(pageMsg(pp)) })
		result <- err
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	if m, ok := final.(progressModel); ok && m.quitting {
		cancel()
		<-result
		return context.Canceled
	}
	workErr := <-result
	if err != nil && workErr == nil && ctx.Err() == nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	return workErr
}
