package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/recap/internal/history"
	"github.com/raphaelgruber/recap/internal/service"
)

var (
	summaryMode     string
	summaryProvider providerFlags
	seenAuthor      string
)

var summaryCmd = &cobra.Command{
	Use:   "summary <count>",
	Short: "Summarize the most recent messages",
	Long: `Summarize the last <count> messages of a channel.

Examples:
  recap summary 100 --channel 123456789
  recap summary 500 -c 123456789 --mode casual
  recap summary 50 --input export.json --provider ollama --model llama3.1`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

var fromtoCmd = &cobra.Command{
	Use:   "fromto <start> <end>",
	Short: "Summarize messages in a time window",
	Long: `Summarize the messages posted between two times, both included.

Times are read in your timezone (see 'recap settings region'). Accepted
forms are absolute ("2024-06-01 09:00", "2024-06-01"), relative
("2 hours ago", "PT90M ago") and "now".

Examples:
  recap fromto "2024-06-01 09:00" "2024-06-01 17:00" -c 123456789
  recap fromto "3 hours ago" now -c 123456789`,
	Args: cobra.ExactArgs(2),
	RunE: runFromTo,
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Summarize messages since you last wrote in the channel",
	Long: `Summarize everything posted after your last-seen message.

Record the marker with 'recap seen' first.`,
	Args: cobra.NoArgs,
	RunE: runUnread,
}

var seenCmd = &cobra.Command{
	Use:   "seen [message-id]",
	Short: "Record your last-seen message in a channel",
	Long: `Record the last message you saw in a channel. Without a message id,
your most recent message (matched by --author, default: your user id)
is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeen,
}

func init() {
	for _, cmd := range []*cobra.Command{summaryCmd, fromtoCmd, unreadCmd} {
		cmd.Flags().StringVarP(&summaryMode, "mode", "m", "", "summary mode")
		summaryProvider.register(cmd)
	}
	seenCmd.Flags().StringVar(&seenAuthor, "author", "", "author id to look for")
}

func newSummaryService() *service.SummaryService {
	return service.NewSummaryService(dataStore, dispatcher, service.SummaryConfig{
		MaxMessages: cfg.MaxMessages,
		Metrics:     collector,
		Logger:      logger,
	})
}

func summaryCommon(src history.Source, onPage func(history.PageProgress)) service.Common {
	return service.Common{
		UserID:   cfg.UserID,
		Source:   src,
		Mode:     summaryMode,
		Provider: summaryProvider.spec(),
		OnPage:   onPage,
	}
}

func runSummary(cmd *cobra.Command, args []string) error {
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("count must be a number: %q", args[0])
	}
	src, _, err := channelSource(cfg, inputFile, channelFlag)
	if err != nil {
		return err
	}

	svc := newSummaryService()
	var sum *service.Summary
	err = withProgress(cmd.Context(), "fetching", count, func(ctx context.Context, onPage func(history.PageProgress)) error {
		var err error
		sum, err = svc.Summarize(ctx, service.CountRequest{Common: summaryCommon(src, onPage), Count: count})
		return err
	})
	if err != nil {
		return err
	}

	renderSummary(stdout, defaultTheme, sum, fmt.Sprintf("Summary of the last %d messages", sum.MessageCount))
	return nil
}

func runFromTo(cmd *cobra.Command, args []string) error {
	src, _, err := channelSource(cfg, inputFile, channelFlag)
	if err != nil {
		return err
	}

	svc := newSummaryService()
	var sum *service.Summary
	err = withProgress(cmd.Context(), "scanning", svc.MaxMessages(), func(ctx context.Context, onPage func(history.PageProgress)) error {
		var err error
		sum, err = svc.SummarizeWindow(ctx, service.WindowRequest{
			Common: summaryCommon(src, onPage),
			Start:  args[0],
			End:    args[1],
		})
		return err
	})
	if err != nil {
		return err
	}

	renderSummary(stdout, defaultTheme, sum, fmt.Sprintf("Summary of %d messages", sum.MessageCount))
	return nil
}

func runUnread(cmd *cobra.Command, args []string) error {
	src, channelID, err := channelSource(cfg, inputFile, channelFlag)
	if err != nil {
		return err
	}

	svc := newSummaryService()
	var sum *service.Summary
	err = withProgress(cmd.Context(), "catching up", svc.MaxMessages(), func(ctx context.Context, onPage func(history.PageProgress)) error {
		var err error
		sum, err = svc.SummarizeUnread(ctx, service.UnreadRequest{
			Common:    summaryCommon(src, onPage),
			ChannelID: channelID,
		})
		return err
	})
	if err != nil {
		return err
	}

	renderSummary(stdout, defaultTheme, sum, fmt.Sprintf("Summary of %d unread messages", sum.MessageCount))
	return nil
}

func runSeen(cmd *cobra.Command, args []string) error {
	src, channelID, err := channelSource(cfg, inputFile, channelFlag)
	if err != nil {
		return err
	}

	req := service.SeenRequest{
		UserID:    cfg.UserID,
		ChannelID: channelID,
		Source:    src,
		AuthorID:  seenAuthor,
	}
	if len(args) == 1 {
		req.MessageID = args[0]
	} else if req.AuthorID == "" {
		req.AuthorID = cfg.UserID
	}

	id, err := newSummaryService().MarkSeen(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, defaultTheme.successStyle().Render("✓ Last seen message: "+id))
	return nil
}
