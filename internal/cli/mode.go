package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/recap/internal/mode"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Manage summary modes",
	Long: `Summary modes are named styles. The description is passed to the
model with every summary that uses the mode.

Examples:
  recap mode add casual "Relaxed tone, short bullet points, emoji welcome"
  recap mode list
  recap mode rm casual
  recap mode export modes.yaml
  recap mode import modes.yaml`,
}

var modeAddCmd = &cobra.Command{
	Use:   "add <name> <description>",
	Short: "Add a mode",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mode.Add(cmd.Context(), dataStore, cfg.UserID, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, defaultTheme.successStyle().Render("✓ Added mode "+m.Name))
		return nil
	},
}

var modeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your modes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		modes, err := dataStore.ListModes(cmd.Context(), cfg.UserID)
		if err != nil {
			return fmt.Errorf("list modes: %w", err)
		}
		renderModes(stdout, defaultTheme, modes)
		return nil
	},
}

var modeRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove"},
	Short:   "Remove a mode",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := mode.Remove(cmd.Context(), dataStore, cfg.UserID, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, defaultTheme.successStyle().Render(fmt.Sprintf("✓ Removed %d mode(s) named %s", n, args[0])))
		return nil
	},
}

var modeExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export modes as YAML (stdout if no file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var w io.Writer = stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			w = f
		}
		n, err := mode.Export(cmd.Context(), dataStore, cfg.UserID, w)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintln(stdout, defaultTheme.successStyle().Render(fmt.Sprintf("✓ Exported %d modes to %s", n, args[0])))
		}
		return nil
	},
}

var modeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import modes from YAML, skipping names you already have",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		res, err := mode.Import(cmd.Context(), dataStore, cfg.UserID, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, defaultTheme.successStyle().Render(fmt.Sprintf("✓ Imported %d modes", len(res.Added))))
		if len(res.Skipped) > 0 {
			fmt.Fprintln(stdout, defaultTheme.hintStyle().Render("Skipped existing: "+strings.Join(res.Skipped, ", ")))
		}
		return nil
	},
}

func init() {
	modeCmd.AddCommand(modeAddCmd, modeListCmd, modeRemoveCmd, modeExportCmd, modeImportCmd)
}
