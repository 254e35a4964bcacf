package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/service"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Title   lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Title:   lipgloss.Color("#AF87FF"), // purple
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

// summaryTitle is the heading shown above a summary.
func summaryTitle(s *service.Summary, what string) string {
	var b strings.Builder
	b.WriteString(what)
	if s.Mode != nil {
		fmt.Fprintf(&b, " (%s mode)", s.Mode.Name)
	}
	if s.Language != "" && s.Language != models.DefaultLanguage {
		fmt.Fprintf(&b, " in %s", models.LanguageName(s.Language))
	}
	return b.String()
}

// renderSummary writes a summary with its heading and a footer naming the
// backend that produced it.
func renderSummary(w io.Writer, t Theme, s *service.Summary, what string) {
	fmt.Fprintln(w, t.titleStyle().Render(summaryTitle(s, what)))
	if s.Window != nil {
		fmt.Fprintln(w, t.hintStyle().Render(fmt.Sprintf("%s to %s (%s)",
			s.Window.Start.Format("2006-01-02 15:04"),
			s.Window.End.Format("2006-01-02 15:04"),
			s.Timezone)))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(s.Text))
	fmt.Fprintln(w)
	footer := fmt.Sprintf("%d messages via %s/%s", s.MessageCount, s.Provider, s.Model)
	if s.ThreadMode {
		footer += ", thread mode"
	}
	fmt.Fprintln(w, t.hintStyle().Render(footer))
}

// renderModes lists a user's modes.
func renderModes(w io.Writer, t Theme, modes []models.Mode) {
	if len(modes) == 0 {
		fmt.Fprintln(w, "No modes defined. Add one with 'recap mode add <name> <description>'.")
		return
	}
	width := 0
	for _, m := range modes {
		width = max(width, len(m.Name))
	}
	for _, m := range modes {
		name := t.statusStyle().Render(fmt.Sprintf("%-*s", width, m.Name))
		fmt.Fprintf(w, "%s  %s\n", name, m.Description)
	}
}

// renderSettings prints stored settings. API keys are never shown, only
// which providers have one.
func renderSettings(w io.Writer, t Theme, s models.Settings) {
	row := func(k, v string) {
		fmt.Fprintf(w, "%s %s\n", t.statusStyle().Render(fmt.Sprintf("%-10s", k)), v)
	}
	row("user", s.UserID)
	row("language", fmt.Sprintf("%s (%s)", s.Language, models.LanguageName(s.Language)))
	row("timezone", s.Timezone)
	row("thread", onOff(s.ThreadMode))
	row("provider", orDefault(s.Provider))
	row("model", orDefault(s.Model))

	keys := make([]string, 0, len(s.APIKeys))
	for name := range s.APIKeys {
		keys = append(keys, name)
	}
	if len(keys) == 0 {
		row("api keys", "none")
		return
	}
	slices.Sort(keys)
	row("api keys", strings.Join(keys, ", "))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
