package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/recap/internal/llm"
)

var providersCmd = &cobra.Command{
	Use:         "providers",
	Short:       "List the supported backends and their configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"store": "none"},
	RunE: func(cmd *cobra.Command, args []string) error {
		renderProviders(stdout, defaultTheme, cfg.LLMDefaults())
		return nil
	},
}

// renderProviders prints one line per backend. Keys are never printed.
func renderProviders(w io.Writer, t Theme, d llm.Defaults) {
	def := llm.DefaultProvider
	if n, ok := llm.ParseName(d.Provider); ok {
		def = n
	}
	for _, name := range llm.Names() {
		pc := d.Providers[name]
		model := pc.Model
		if model == "" {
			model = llm.DefaultModel(name)
		}

		var notes []string
		switch {
		case pc.APIKey != "":
			notes = append(notes, "key configured")
		case llm.RequiresCredential(name):
			notes = append(notes, "needs key")
		}
		if pc.BaseURL != "" {
			notes = append(notes, pc.BaseURL)
		}
		if pc.Region != "" {
			notes = append(notes, "region "+pc.Region)
		}

		marker := " "
		if name == def {
			marker = "*"
		}
		label := t.statusStyle().Render(fmt.Sprintf("%-14s", name))
		fmt.Fprintf(w, "%s %s %-28s %s\n", marker, label, model, t.hintStyle().Render(strings.Join(notes, ", ")))
	}
}

func joinNames(names []llm.Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
