// Package service orchestrates history retrieval, prompt assembly and
// provider dispatch for one user request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/recap/internal/history"
	"github.com/raphaelgruber/recap/internal/llm"
	"github.com/raphaelgruber/recap/internal/metrics"
	"github.com/raphaelgruber/recap/internal/mode"
	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/prompt"
	"github.com/raphaelgruber/recap/internal/store"
	"github.com/raphaelgruber/recap/internal/window"
)

// DefaultMaxMessages is the per-request message ceiling. It applies whether
// or not the user configured a personal credential.
const DefaultMaxMessages = 2000

var (
	// ErrCountOutOfRange indicates a message count outside 1..MaxMessages.
	ErrCountOutOfRange = errors.New("message count out of range")

	// ErrNoMessages indicates that nothing matched the request.
	ErrNoMessages = errors.New("no messages to summarize")

	// ErrNoLastSeen indicates no last-seen marker for the user and channel.
	ErrNoLastSeen = errors.New("no last seen message recorded")
)

// Dispatcher sends a conversation to a resolved backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, messages []models.ChatMessage, req models.ProviderSpec, settings models.Settings) (llm.Result, error)
}

// Compile-time check that llm.Dispatcher implements Dispatcher.
var _ Dispatcher = (*llm.Dispatcher)(nil)

// SummaryConfig configures a SummaryService. Zero values select defaults.
type SummaryConfig struct {
	MaxMessages int
	Resolver    *window.Resolver
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// SummaryService produces count, window and unread summaries.
type SummaryService struct {
	store       store.Store
	dispatcher  Dispatcher
	resolver    *window.Resolver
	metrics     *metrics.Collector
	logger      *slog.Logger
	maxMessages int
}

// NewSummaryService creates a new summary service.
func NewSummaryService(st store.Store, dispatcher Dispatcher, cfg SummaryConfig) *SummaryService {
	s := &SummaryService{
		store:       st,
		dispatcher:  dispatcher,
		resolver:    cfg.Resolver,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		maxMessages: cfg.MaxMessages,
	}
	if s.resolver == nil {
		s.resolver = window.NewResolver()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxMessages <= 0 {
		s.maxMessages = DefaultMaxMessages
	}
	return s
}

// MaxMessages returns the per-request ceiling.
func (s *SummaryService) MaxMessages() int {
	return s.maxMessages
}

// Common carries the fields shared by every summary request.
type Common struct {
	UserID   string
	Source   history.Source
	Mode     string
	Provider models.ProviderSpec
	OnPage   func(history.PageProgress)
}

// CountRequest summarizes the most recent Count messages.
type CountRequest struct {
	Common
	Count int
}

// WindowRequest summarizes messages between two time expressions,
// interpreted in the user's timezone.
type WindowRequest struct {
	Common
	Start string
	End   string
}

// UnreadRequest summarizes everything after the user's last-seen message.
type UnreadRequest struct {
	Common
	ChannelID string
}

// Summary is the outcome of a successful request.
type Summary struct {
	Text         string
	Provider     llm.Name
	Model        string
	MessageCount int
	Language     string
	Timezone     string
	Mode         *models.Mode
	Window       *models.WindowSpec
	ThreadMode   bool
}

// Summarize summarizes the most recent req.Count messages.
func (s *SummaryService) Summarize(ctx context.Context, req CountRequest) (*Summary, error) {
	if req.Count < 1 || req.Count > s.maxMessages {
		return nil, fmt.Errorf("%w: %d (allowed 1-%d)", ErrCountOutOfRange, req.Count, s.maxMessages)
	}

	logger := s.logger.With("op", "summary", "user", req.UserID, "count", req.Count)
	prep, err := s.prepare(ctx, req.Common)
	if err != nil {
		return nil, err
	}

	msgs, err := history.FetchPaginated(ctx, s.timed(req.Source), req.Count, history.FetchOptions{
		OnPage: req.OnPage,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	return s.finish(ctx, logger, req.Common, prep, msgs, nil)
}

// SummarizeWindow summarizes messages whose timestamps fall inside the
// resolved window, boundaries included.
func (s *SummaryService) SummarizeWindow(ctx context.Context, req WindowRequest) (*Summary, error) {
	logger := s.logger.With("op", "fromto", "user", req.UserID)
	prep, err := s.prepare(ctx, req.Common)
	if err != nil {
		return nil, err
	}

	w, err := s.resolver.Resolve(req.Start, req.End, prep.settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("resolve window: %w", err)
	}
	logger.Debug("window resolved", "start", w.Start.Format(time.RFC3339), "end", w.End.Format(time.RFC3339))

	fetched, err := history.FetchPaginated(ctx, s.timed(req.Source), s.maxMessages, history.FetchOptions{
		OnPage: req.OnPage,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	return s.finish(ctx, logger, req.Common, prep, w.Filter(fetched), &w)
}

// SummarizeUnread summarizes messages after the user's last-seen marker.
func (s *SummaryService) SummarizeUnread(ctx context.Context, req UnreadRequest) (*Summary, error) {
	logger := s.logger.With("op", "unread", "user", req.UserID, "channel", req.ChannelID)

	seen, err := s.store.LastSeen(ctx, req.UserID, req.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: channel %s", ErrNoLastSeen, req.ChannelID)
	}
	if err != nil {
		return nil, fmt.Errorf("get last seen: %w", err)
	}

	prep, err := s.prepare(ctx, req.Common)
	if err != nil {
		return nil, err
	}

	msgs, err := history.FetchPaginated(ctx, s.timed(req.Source), s.maxMessages, history.FetchOptions{
		AfterID: seen.MessageID,
		OnPage:  req.OnPage,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	return s.finish(ctx, logger, req.Common, prep, msgs, nil)
}

// SeenRequest records a last-seen marker. When MessageID is empty, the most
// recent message by AuthorID is used.
type SeenRequest struct {
	UserID    string
	ChannelID string
	Source    history.Source
	MessageID string
	AuthorID  string
}

// MarkSeen stores the last-seen marker and returns the message id recorded.
func (s *SummaryService) MarkSeen(ctx context.Context, req SeenRequest) (string, error) {
	messageID := req.MessageID
	if messageID == "" {
		if req.AuthorID == "" {
			return "", fmt.Errorf("message id or author id required")
		}
		latest, err := history.FetchPaginated(ctx, s.timed(req.Source), 1, history.FetchOptions{
			Filter: func(m models.Message) bool { return m.AuthorID == req.AuthorID },
			Logger: s.logger,
		})
		if err != nil {
			return "", fmt.Errorf("find latest message: %w", err)
		}
		if len(latest) == 0 {
			return "", fmt.Errorf("%w: no message by %s in channel %s", ErrNoMessages, req.AuthorID, req.ChannelID)
		}
		messageID = latest[0].ID
	}

	err := s.store.RecordLastSeen(ctx, models.LastSeen{
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		MessageID: messageID,
	})
	if err != nil {
		return "", fmt.Errorf("record last seen: %w", err)
	}
	return messageID, nil
}

type prepared struct {
	settings models.Settings
	mode     *models.Mode
	location *time.Location
}

// prepare reads settings once and validates the requested mode before any
// history is fetched.
func (s *SummaryService) prepare(ctx context.Context, c Common) (prepared, error) {
	settings, err := s.store.GetSettings(ctx, c.UserID)
	if err != nil {
		return prepared{}, fmt.Errorf("get settings: %w", err)
	}

	m, err := mode.Validate(ctx, s.store, c.UserID, c.Mode)
	if err != nil {
		return prepared{}, err
	}

	loc, err := window.LoadLocation(settings.Timezone)
	if err != nil {
		s.logger.Warn("stored timezone invalid, using UTC", "user", c.UserID, "timezone", settings.Timezone)
		loc = time.UTC
		settings.Timezone = models.DefaultTimezone
	}

	return prepared{settings: settings, mode: m, location: loc}, nil
}

func (s *SummaryService) finish(ctx context.Context, logger *slog.Logger, c Common, p prepared, msgs []models.Message, w *models.WindowSpec) (*Summary, error) {
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	chat := prompt.Assembler{Location: p.location}.Summarize(msgs, prompt.Options{
		Language: p.settings.Language,
		Mode:     p.mode,
	})

	res, err := s.dispatcher.Dispatch(ctx, chat, c.Provider, p.settings)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	logger.Info("summary generated", "messages", len(msgs), "provider", res.Provider, "model", res.Model)

	return &Summary{
		Text:         res.Text,
		Provider:     res.Provider,
		Model:        res.Model,
		MessageCount: len(msgs),
		Language:     p.settings.Language,
		Timezone:     p.settings.Timezone,
		Mode:         p.mode,
		Window:       w,
		ThreadMode:   p.settings.ThreadMode,
	}, nil
}

func (s *SummaryService) timed(src history.Source) history.Source {
	if s.metrics == nil {
		return src
	}
	return &timedSource{inner: src, metrics: s.metrics}
}

// timedSource records latency and size of every successful page fetch.
type timedSource struct {
	inner   history.Source
	metrics *metrics.Collector
}

func (t *timedSource) FetchPage(ctx context.Context, req history.PageRequest) ([]models.Message, error) {
	start := time.Now()
	page, err := t.inner.FetchPage(ctx, req)
	if err != nil {
		return nil, err
	}
	t.metrics.RecordPage(time.Since(start), len(page))
	return page, nil
}
