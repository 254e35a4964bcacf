// Package prompt turns retrieved messages into the text sent to a backend.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/recap/internal/models"
)

// TimestampLayout is the per-line timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	baseInstructions = `Please provide a comprehensive summary of the following chat messages.
Focus on the main topics, key points, and important discussions.
Organize the summary in a clear and structured way.`

	modeInstructions = "Use the summary mode %q. Follow this description of the mode:\n%s\n"

	systemDirective     = "You are a helpful assistant that summarizes chat conversations in a clear and organized manner."
	systemModeDirective = "You are a helpful assistant that summarizes chat conversations. When a specific mode is requested, adapt your summary style accordingly."
)

// Assembler renders messages into timestamped lines.
type Assembler struct {
	// Location is the caller's timezone. Nil means UTC.
	Location *time.Location
}

// Format renders one line per message, preserving input order:
//
//	[2006-01-02 15:04:05] AuthorName: text
func (a Assembler) Format(messages []models.Message) string {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}

	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('[')
		sb.WriteString(m.CreatedAt.In(loc).Format(TimestampLayout))
		sb.WriteString("] ")
		sb.WriteString(m.AuthorName)
		sb.WriteString(": ")
		sb.WriteString(flatten(m.Text))
	}
	return sb.String()
}

// flatten folds embedded line breaks so one message stays one line.
func flatten(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
}

// Options controls the directives wrapped around formatted messages.
type Options struct {
	// Language is an output language code; "en" and empty add no directive.
	Language string
	// Mode, when set, adds the mode's description as a style directive.
	Mode *models.Mode
}

// BuildPrompt wraps formatted messages in instructions. Directive order is
// fixed: base instructions, language, mode, messages, closing cue.
func BuildPrompt(formatted string, opts Options) string {
	var sb strings.Builder

	sb.WriteString(baseInstructions)
	sb.WriteByte('\n')

	if lang := strings.ToLower(strings.TrimSpace(opts.Language)); lang != "" && lang != models.DefaultLanguage {
		fmt.Fprintf(&sb, "Please provide the summary in %s.\n", models.LanguageName(lang))
	}

	if opts.Mode != nil {
		fmt.Fprintf(&sb, modeInstructions, opts.Mode.Name, opts.Mode.Description)
	}

	sb.WriteString("\nMessages:\n")
	sb.WriteString(formatted)
	sb.WriteString("\n\n")

	if opts.Mode != nil {
		fmt.Fprintf(&sb, "Summary (%s mode):", opts.Mode.Name)
	} else {
		sb.WriteString("Summary:")
	}
	return sb.String()
}

// BuildMessages pairs the prompt with the matching system directive.
func BuildMessages(prompt string, hasMode bool) []models.ChatMessage {
	system := systemDirective
	if hasMode {
		system = systemModeDirective
	}
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: prompt},
	}
}

// Summarize is Format, BuildPrompt and BuildMessages in one step.
func (a Assembler) Summarize(messages []models.Message, opts Options) []models.ChatMessage {
	return BuildMessages(BuildPrompt(a.Format(messages), opts), opts.Mode != nil)
}
