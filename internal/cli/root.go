// Package cli provides the command-line interface for recap.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/recap/internal/config"
	"github.com/raphaelgruber/recap/internal/db"
	"github.com/raphaelgruber/recap/internal/history"
	"github.com/raphaelgruber/recap/internal/llm"
	"github.com/raphaelgruber/recap/internal/metrics"
	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	userFlag    string
	verbose     bool
	showStats   bool
	inputFile   string
	channelFlag string

	// Process-wide state set up in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	collector  *metrics.Collector
	dataStore  store.Store
	dispatcher *llm.Dispatcher
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recap",
	Short: "Summarize chat channel history with an LLM",
	Long: `Recap reads a channel's message history and asks an LLM for a summary.

Summaries can cover the last N messages, a time window in your timezone,
or everything since you last wrote in the channel. Language, timezone,
summary modes and backend preferences are stored per user.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if userFlag != "" {
			cfg.UserID = userFlag
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		if cfg.LogFile != "" {
			_ = os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755)
		}
		var base *slog.Logger
		base, closeLog = config.SetupLogger(cfg.LogFile, level)
		logger, _ = config.WithRequestID(base.With("user", cfg.UserID, "command", cmd.CommandPath()))
		slog.SetDefault(logger)

		collector = metrics.NewCollector()
		dispatcher = llm.NewDispatcher(cfg.LLMDefaults(),
			llm.WithMetrics(collector),
			llm.WithLogger(logger),
		)

		if skipStore(cmd) {
			return nil
		}
		st, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		dataStore = store.NewTimed(st, collector)
		return nil
	},
}

// shutdown releases what PersistentPreRunE set up. It runs whether or not
// the command failed.
func shutdown() {
	if dataStore != nil {
		if err := dataStore.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
		dataStore = nil
	}
	if showStats && collector != nil {
		printStats(os.Stderr, collector.Snapshot())
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

// skipStore reports whether cmd runs without persistence.
func skipStore(cmd *cobra.Command) bool {
	return cmd.Annotations["store"] == "none"
}

// openStore connects the configured backend.
func openStore(ctx context.Context, c config.Config, log *slog.Logger) (store.Store, error) {
	switch c.Store {
	case config.StoreSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       c.SurrealDBURL,
			Namespace: c.SurrealDBNamespace,
			Database:  c.SurrealDBDatabase,
			Username:  c.SurrealDBUser,
			Password:  c.SurrealDBPass,
			AuthLevel: c.SurrealDBAuthLevel,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return client, nil
	default:
		st, err := store.NewSQLiteStore(c.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return st, nil
	}
}

// errNoSource is returned when neither --input nor a Discord channel is set.
var errNoSource = errors.New("no message source: pass --input <export.json> or --channel with DISCORD_TOKEN set")

// channelSource returns the history source and the channel id for this run.
// An export file takes precedence over the Discord API.
func channelSource(c config.Config, input, channelID string) (history.Source, string, error) {
	if input != "" {
		src, err := history.LoadStaticSource(input)
		if err != nil {
			return nil, "", err
		}
		if channelID == "" {
			channelID = "file:" + filepath.Base(input)
		}
		return src, channelID, nil
	}
	if channelID == "" || c.DiscordToken == "" {
		return nil, "", errNoSource
	}
	client := history.NewDiscordClient(c.DiscordAPI, c.DiscordToken, c.RequestTimeout)
	return client.Channel(channelID), channelID, nil
}

// providerFlags holds the per-request backend override flags.
type providerFlags struct {
	name  string
	model string
	key   string
}

func (p *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.name, "provider", "p", "", "backend to use ("+joinNames(llm.Names())+")")
	cmd.Flags().StringVar(&p.model, "model", "", "model override")
	cmd.Flags().StringVar(&p.key, "api-key", "", "credential for this request only")
}

func (p providerFlags) spec() models.ProviderSpec {
	return models.ProviderSpec{Name: p.name, Model: p.model, Credential: p.key}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, defaultTheme.errorStyle().Render("Error: "+err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user id for stored preferences (default $RECAP_USER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print runtime statistics on exit")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "input", "i", "", "read history from a JSON export instead of Discord")
	rootCmd.PersistentFlags().StringVarP(&channelFlag, "channel", "c", "", "channel id")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(fromtoCmd)
	rootCmd.AddCommand(unreadCmd)
	rootCmd.AddCommand(seenCmd)
	rootCmd.AddCommand(assistantCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apikeyCmd)
	rootCmd.AddCommand(providersCmd)
}

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout
