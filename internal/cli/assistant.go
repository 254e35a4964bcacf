package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/recap/internal/service"
)

var assistantProvider providerFlags

var assistantCmd = &cobra.Command{
	Use:   "assistant <prompt>",
	Short: "Ask the assistant a free-form question",
	Long: `Send a prompt to the configured backend and print the answer.

The provider and model that answered are remembered as your preference.

Examples:
  recap assistant "Explain cursor pagination in one paragraph"
  recap assistant --provider anthropic "Draft a standup update"`,
	Args:        cobra.MinimumNArgs(1),
	RunE:        runAssistant,
}

func init() {
	assistantProvider.register(assistantCmd)
}

func runAssistant(cmd *cobra.Command, args []string) error {
	svc := service.NewAssistantService(dataStore, dispatcher, logger)
	reply, err := svc.Chat(cmd.Context(), service.AssistantRequest{
		UserID:   cfg.UserID,
		Prompt:   strings.Join(args, " "),
		Provider: assistantProvider.spec(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, strings.TrimSpace(reply.Text))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, defaultTheme.hintStyle().Render(fmt.Sprintf("via %s/%s", reply.Provider, reply.Model)))
	return nil
}
