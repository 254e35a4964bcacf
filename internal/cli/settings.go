package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/service"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change your preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := service.NewSettingsService(dataStore).Get(cmd.Context(), cfg.UserID)
		if err != nil {
			return err
		}
		renderSettings(stdout, defaultTheme, s)
		return nil
	},
}

var settingsLanguageCmd = &cobra.Command{
	Use:   "language <code>",
	Short: "Set the summary language (e.g. en, es, ja, pt-br)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := service.NewSettingsService(dataStore).SetLanguage(cmd.Context(), cfg.UserID, args[0])
		if err != nil {
			return err
		}
		return confirm("Language set to %s (%s)", s.Language, models.LanguageName(s.Language))
	},
}

var settingsRegionCmd = &cobra.Command{
	Use:     "region <timezone>",
	Aliases: []string{"timezone"},
	Short:   "Set your IANA timezone (e.g. Europe/Vienna)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := service.NewSettingsService(dataStore).SetTimezone(cmd.Context(), cfg.UserID, args[0])
		if err != nil {
			return err
		}
		return confirm("Timezone set to %s", s.Timezone)
	},
}

var settingsThreadCmd = &cobra.Command{
	Use:   "thread <on|off>",
	Short: "Toggle thread delivery of results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseToggle(args[0])
		if err != nil {
			return err
		}
		s, err := service.NewSettingsService(dataStore).SetThreadMode(cmd.Context(), cfg.UserID, enabled)
		if err != nil {
			return err
		}
		return confirm("Thread mode %s", onOff(s.ThreadMode))
	},
}

var settingsProviderCmd = &cobra.Command{
	Use:   "provider <name> [model]",
	Short: "Set the preferred backend and model",
	Long: `Set the backend and model used when a command passes neither.
Use an empty name ("") to clear the preference.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var model string
		if len(args) == 2 {
			model = args[1]
		}
		s, err := service.NewSettingsService(dataStore).SetPreference(cmd.Context(), cfg.UserID, args[0], model)
		if err != nil {
			return err
		}
		return confirm("Provider %s, model %s", orDefault(s.Provider), orDefault(s.Model))
	},
}

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage personal API keys",
	Long: `Store a personal API key per provider. A personal key takes precedence
over the key in the environment.

Examples:
  recap apikey set openai
  recap apikey remove openai`,
}

var apikeySetCmd = &cobra.Command{
	Use:   "set <provider> [key]",
	Short: "Store a key (prompts without echo if omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 2 {
			key = args[1]
		} else {
			var err error
			key, err = readSecret(os.Stdin, os.Stderr, "API key for "+args[0]+": ")
			if err != nil {
				return err
			}
		}
		if _, err := service.NewSettingsService(dataStore).SetAPIKey(cmd.Context(), cfg.UserID, args[0], key); err != nil {
			return err
		}
		return confirm("Stored API key for %s", strings.ToLower(args[0]))
	},
}

var apikeyRemoveCmd = &cobra.Command{
	Use:     "remove <provider>",
	Aliases: []string{"rm"},
	Short:   "Delete a stored key",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := service.NewSettingsService(dataStore).RemoveAPIKey(cmd.Context(), cfg.UserID, args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintln(stdout, defaultTheme.hintStyle().Render("No API key stored for "+strings.ToLower(args[0])))
			return nil
		}
		return confirm("Removed API key for %s", strings.ToLower(args[0]))
	},
}

func init() {
	settingsCmd.AddCommand(settingsLanguageCmd, settingsRegionCmd, settingsThreadCmd, settingsProviderCmd)
	apikeyCmd.AddCommand(apikeySetCmd, apikeyRemoveCmd)
}

func confirm(format string, args ...any) error {
	fmt.Fprintln(stdout, defaultTheme.successStyle().Render("✓ "+fmt.Sprintf(format, args...)))
	return nil
}

// parseToggle accepts on/off style words.
func parseToggle(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// readSecret reads one line from in. When in is a terminal the input is not
// echoed.
func readSecret(in *os.File, prompt io.Writer, label string) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
