package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/recap/internal/history"
	"github.com/raphaelgruber/recap/internal/llm"
	"github.com/raphaelgruber/recap/internal/metrics"
	"github.com/raphaelgruber/recap/internal/mode"
	"github.com/raphaelgruber/recap/internal/models"
	"github.com/raphaelgruber/recap/internal/store"
	"github.com/raphaelgruber/recap/internal/window"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeDispatcher records calls and resolves provider like the real one would
// for the fields tests care about.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    int
	messages []models.ChatMessage
	req      models.ProviderSpec
	settings models.Settings
	err      error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msgs []models.ChatMessage, req models.ProviderSpec, settings models.Settings) (llm.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = msgs
	f.req = req
	f.settings = settings
	if f.err != nil {
		return llm.Result{}, f.err
	}
	name := llm.DefaultProvider
	if n, ok := llm.ParseName(req.Name); ok {
		name = n
	}
	preferred := req.Model
	if preferred == "" {
		preferred = settings.Model
	}
	model := preferred
	if model == "" {
		model = llm.DefaultModel(name)
	}
	return llm.Result{Text: "the summary", Provider: name, Model: model, ModelPreference: preferred}, nil
}

func (f *fakeDispatcher) userPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) < 2 {
		return ""
	}
	return f.messages[1].Content
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "recap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// hourly returns n messages one hour apart starting at baseTime.
func hourly(n int) []models.Message {
	msgs := make([]models.Message, n)
	for i := range msgs {
		msgs[i] = models.Message{
			ID:         fmt.Sprintf("%04d", i),
			AuthorID:   fmt.Sprintf("a%d", i%2),
			AuthorName: fmt.Sprintf("author%d", i%2),
			CreatedAt:  baseTime.Add(time.Duration(i) * time.Hour),
			Text:       fmt.Sprintf("msg %d", i),
		}
	}
	return msgs
}

func newSummary(t *testing.T, d Dispatcher, cfg SummaryConfig) (*SummaryService, store.Store) {
	t.Helper()
	st := newStore(t)
	return NewSummaryService(st, d, cfg), st
}

func TestSummarizeCount(t *testing.T) {
	d := &fakeDispatcher{}
	collector := metrics.NewCollector()
	svc, _ := newSummary(t, d, SummaryConfig{Metrics: collector})
	src := history.NewStaticSource(hourly(250))

	var pages []history.PageProgress
	sum, err := svc.Summarize(context.Background(), CountRequest{
		Common: Common{UserID: "u1", Source: src, OnPage: func(p history.PageProgress) { pages = append(pages, p) }},
		Count:  150,
	})
	require.NoError(t, err)

	assert.Equal(t, "the summary", sum.Text)
	assert.Equal(t, 150, sum.MessageCount)
	assert.Equal(t, llm.Gemini, sum.Provider)
	assert.Len(t, pages, 2)

	lines := strings.Split(d.userPrompt(), "\n")
	var msgLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, "[") {
			msgLines = append(msgLines, l)
		}
	}
	require.Len(t, msgLines, 150)
	assert.Contains(t, msgLines[0], "msg 100")
	assert.Contains(t, msgLines[149], "msg 249")

	snap := collector.Snapshot().History
	assert.Equal(t, int64(2), snap.Pages)
	assert.Equal(t, int64(150), snap.Messages)
	assert.Zero(t, snap.EmptyPages)
}

func TestSummarizeCountOutOfRange(t *testing.T) {
	d := &fakeDispatcher{}
	svc, _ := newSummary(t, d, SummaryConfig{})
	src := history.NewStaticSource(hourly(5))

	for _, n := range []int{0, -1, DefaultMaxMessages + 1} {
		_, err := svc.Summarize(context.Background(), CountRequest{Common: Common{UserID: "u1", Source: src}, Count: n})
		assert.ErrorIs(t, err, ErrCountOutOfRange, "count %d", n)
	}
	assert.Zero(t, d.calls)
	assert.Empty(t, src.Requests)
}

func TestSummarizeCustomCeiling(t *testing.T) {
	svc, _ := newSummary(t, &fakeDispatcher{}, SummaryConfig{MaxMessages: 10})
	assert.Equal(t, 10, svc.MaxMessages())

	_, err := svc.Summarize(context.Background(), CountRequest{
		Common: Common{UserID: "u1", Source: history.NewStaticSource(hourly(20))},
		Count:  11,
	})
	assert.ErrorIs(t, err, ErrCountOutOfRange)
}

func TestSummarizeEmptyChannel(t *testing.T) {
	d := &fakeDispatcher{}
	svc, _ := newSummary(t, d, SummaryConfig{})

	_, err := svc.Summarize(context.Background(), CountRequest{
		Common: Common{UserID: "u1", Source: history.NewStaticSource(nil)},
		Count:  10,
	})
	assert.ErrorIs(t, err, ErrNoMessages)
	assert.Zero(t, d.calls)
}

func TestSummarizeUnknownModeFailsBeforeFetch(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}
	svc, st := newSummary(t, d, SummaryConfig{})
	_, err := mode.Add(ctx, st, "u1", "casual", "Relaxed tone.")
	require.NoError(t, err)
	src := history.NewStaticSource(hourly(10))

	_, err = svc.Summarize(ctx, CountRequest{Common: Common{UserID: "u1", Source: src, Mode: "formal"}, Count: 5})
	assert.ErrorIs(t, err, mode.ErrModeNotFound)
	assert.Empty(t, src.Requests)
	assert.Zero(t, d.calls)
}

func TestSummarizeAppliesSettingsAndMode(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}
	svc, st := newSummary(t, d, SummaryConfig{})

	lang, tz := "de", "Europe/Berlin"
	_, err := st.SetSettings(ctx, "u1", models.SettingsPatch{Language: &lang, Timezone: &tz})
	require.NoError(t, err)
	_, err = mode.Add(ctx, st, "u1", "Casual", "Relaxed, emoji-friendly tone.")
	require.NoError(t, err)

	sum, err := svc.Summarize(ctx, CountRequest{
		Common: Common{
			UserID:   "u1",
			Source:   history.NewStaticSource(hourly(3)),
			Mode:     "casual",
			Provider: models.ProviderSpec{Name: "openai", Credential: "sk-explicit"},
		},
		Count: 3,
	})
	require.NoError(t, err)

	p := d.userPrompt()
	assert.Contains(t, p, "German")
	assert.Contains(t, p, "Relaxed, emoji-friendly tone.")
	assert.Contains(t, p, "Summary (Casual mode):")
	// 00:00 UTC is 01:00 in Berlin in January.
	assert.Contains(t, p, "[2024-01-01 01:00:00] author0: msg 0")

	assert.Equal(t, "sk-explicit", d.req.Credential)
	assert.Equal(t, "de", d.settings.Language)
	assert.Equal(t, llm.OpenAI, sum.Provider)
	require.NotNil(t, sum.Mode)
	assert.Equal(t, "Casual", sum.Mode.Name)
}

func TestSummarizeDispatchError(t *testing.T) {
	boom := fmt.Errorf("%w: gemini: quota", llm.ErrProviderError)
	svc, _ := newSummary(t, &fakeDispatcher{err: boom}, SummaryConfig{})

	_, err := svc.Summarize(context.Background(), CountRequest{
		Common: Common{UserID: "u1", Source: history.NewStaticSource(hourly(3))},
		Count:  3,
	})
	assert.ErrorIs(t, err, llm.ErrProviderError)
}

func TestSummarizeWindowInclusive(t *testing.T) {
	d := &fakeDispatcher{}
	svc, _ := newSummary(t, d, SummaryConfig{
		Resolver: &window.Resolver{Now: func() time.Time { return baseTime.Add(100 * time.Hour) }},
	})

	sum, err := svc.SummarizeWindow(context.Background(), WindowRequest{
		Common: Common{UserID: "u1", Source: history.NewStaticSource(hourly(72))},
		Start:  "2024-01-01 00:00",
		End:    "2024-01-02 00:00",
	})
	require.NoError(t, err)

	// Hours 0 through 24 inclusive.
	assert.Equal(t, 25, sum.MessageCount)
	require.NotNil(t, sum.Window)
	assert.Equal(t, baseTime, sum.Window.Start)
	p := d.userPrompt()
	assert.Contains(t, p, "msg 0")
	assert.Contains(t, p, "msg 24")
	assert.NotContains(t, p, "msg 25")
}

func TestSummarizeWindowRelative(t *testing.T) {
	now := baseTime.Add(71 * time.Hour)
	svc, _ := newSummary(t, &fakeDispatcher{}, SummaryConfig{
		Resolver: &window.Resolver{Now: func() time.Time { return now }},
	})

	sum, err := svc.SummarizeWindow(context.Background(), WindowRequest{
		Common: Common{UserID: "u1", Source: history.NewStaticSource(hourly(72))},
		Start:  "2 hours ago",
		End:    "now",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.MessageCount)
}

func TestSummarizeWindowErrors(t *testing.T) {
	svc, _ := newSummary(t, &fakeDispatcher{}, SummaryConfig{})
	src := history.NewStaticSource(hourly(10))

	_, err := svc.SummarizeWindow(context.Background(), WindowRequest{
		Common: Common{UserID: "u1", Source: src}, Start: "2024-01-02 00:00", End: "2024-01-01 00:00",
	})
	assert.ErrorIs(t, err, window.ErrInvalidRange)

	_, err = svc.SummarizeWindow(context.Background(), WindowRequest{
		Common: Common{UserID: "u1", Source: src}, Start: "someday", End: "now",
	})
	assert.ErrorIs(t, err, window.ErrInvalidTimeFormat)

	_, err = svc.SummarizeWindow(context.Background(), WindowRequest{
		Common: Common{UserID: "u1", Source: src}, Start: "2020-01-01", End: "2020-01-02",
	})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestSummarizeUnread(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}
	svc, _ := newSummary(t, d, SummaryConfig{})
	src := history.NewStaticSource(hourly(30))

	_, err := svc.SummarizeUnread(ctx, UnreadRequest{Common: Common{UserID: "u1", Source: src}, ChannelID: "c1"})
	assert.ErrorIs(t, err, ErrNoLastSeen)

	id, err := svc.MarkSeen(ctx, SeenRequest{UserID: "u1", ChannelID: "c1", Source: src, MessageID: "0019"})
	require.NoError(t, err)
	assert.Equal(t, "0019", id)

	sum, err := svc.SummarizeUnread(ctx, UnreadRequest{Common: Common{UserID: "u1", Source: src}, ChannelID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 10, sum.MessageCount)
	assert.Contains(t, d.userPrompt(), "msg 20")
	assert.NotContains(t, d.userPrompt(), "msg 19")

	last := src.Requests[len(src.Requests)-1]
	assert.NotEmpty(t, last.After)
}

func TestSummarizeUnreadNothingNew(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSummary(t, &fakeDispatcher{}, SummaryConfig{})
	src := history.NewStaticSource(hourly(5))

	_, err := svc.MarkSeen(ctx, SeenRequest{UserID: "u1", ChannelID: "c1", Source: src, MessageID: "0004"})
	require.NoError(t, err)

	_, err = svc.SummarizeUnread(ctx, UnreadRequest{Common: Common{UserID: "u1", Source: src}, ChannelID: "c1"})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestMarkSeenByAuthor(t *testing.T) {
	ctx := context.Background()
	svc, st := newSummary(t, &fakeDispatcher{}, SummaryConfig{})
	src := history.NewStaticSource(hourly(9))

	id, err := svc.MarkSeen(ctx, SeenRequest{UserID: "u1", ChannelID: "c1", Source: src, AuthorID: "a1"})
	require.NoError(t, err)
	// Odd indices belong to a1; the newest is 7.
	assert.Equal(t, "0007", id)

	ls, err := st.LastSeen(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "0007", ls.MessageID)

	_, err = svc.MarkSeen(ctx, SeenRequest{UserID: "u1", ChannelID: "c1", Source: src, AuthorID: "nobody"})
	assert.ErrorIs(t, err, ErrNoMessages)

	_, err = svc.MarkSeen(ctx, SeenRequest{UserID: "u1", ChannelID: "c1", Source: src})
	assert.Error(t, err)
}

func TestInvalidStoredTimezoneFallsBackToUTC(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}
	svc, st := newSummary(t, d, SummaryConfig{})
	bad := "Nowhere/Special"
	_, err := st.SetSettings(ctx, "u1", models.SettingsPatch{Timezone: &bad})
	require.NoError(t, err)

	sum, err := svc.Summarize(ctx, CountRequest{Common: Common{UserID: "u1", Source: history.NewStaticSource(hourly(1))}, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTimezone, sum.Timezone)
	assert.Contains(t, d.userPrompt(), "[2024-01-01 00:00:00]")
}

func TestAssistantPersistsChoiceAfterSuccess(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	d := &fakeDispatcher{}
	svc := NewAssistantService(st, d, nil)

	reply, err := svc.Chat(ctx, AssistantRequest{
		UserID:   "u1",
		Prompt:   "  what is a recap?  ",
		Provider: models.ProviderSpec{Name: "Anthropic", Model: "claude-x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the summary", reply.Text)
	assert.Equal(t, llm.Anthropic, reply.Provider)

	require.Len(t, d.messages, 2)
	assert.Equal(t, models.RoleSystem, d.messages[0].Role)
	assert.Equal(t, "what is a recap?", d.messages[1].Content)

	settings, err := st.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", settings.Provider)
	assert.Equal(t, "claude-x", settings.Model)
}

// recordingProvider remembers the model each backend was built with.
type recordingProvider struct {
	models *[]string
	model  string
}

func (p recordingProvider) Chat(context.Context, []models.ChatMessage) (llm.Reply, error) {
	*p.models = append(*p.models, p.model)
	return llm.Reply{Text: "ok"}, nil
}

func TestAssistantKeepsBuiltinModelOutOfSettings(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	var used []string
	factory := func(cfg llm.ProviderConfig) (llm.Provider, error) {
		return recordingProvider{models: &used, model: cfg.Model}, nil
	}
	d := llm.NewDispatcher(llm.Defaults{},
		llm.WithFactory(llm.Gemini, factory),
		llm.WithFactory(llm.OpenAI, factory),
	)
	svc := NewAssistantService(st, d, nil)

	first, err := svc.Chat(ctx, AssistantRequest{UserID: "u1", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, llm.Gemini, first.Provider)
	assert.Equal(t, llm.DefaultModel(llm.Gemini), first.Model)

	settings, err := st.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "gemini", settings.Provider)
	assert.Empty(t, settings.Model)

	second, err := svc.Chat(ctx, AssistantRequest{UserID: "u1", Prompt: "hi", Provider: models.ProviderSpec{Name: "openai"}})
	require.NoError(t, err)
	assert.Equal(t, llm.OpenAI, second.Provider)
	assert.Equal(t, llm.DefaultModel(llm.OpenAI), second.Model)
	assert.Equal(t, []string{llm.DefaultModel(llm.Gemini), llm.DefaultModel(llm.OpenAI)}, used)
}

func TestAssistantPersistsProcessDefaultModel(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	d := llm.NewDispatcher(llm.Defaults{Model: "house-model"},
		llm.WithFactory(llm.Gemini, func(cfg llm.ProviderConfig) (llm.Provider, error) {
			var used []string
			return recordingProvider{models: &used, model: cfg.Model}, nil
		}),
	)
	svc := NewAssistantService(st, d, nil)

	_, err := svc.Chat(ctx, AssistantRequest{UserID: "u1", Prompt: "hi"})
	require.NoError(t, err)

	settings, err := st.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "house-model", settings.Model)
}

func TestAssistantDoesNotPersistOnFailure(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := NewAssistantService(st, &fakeDispatcher{err: errors.New("down")}, nil)

	_, err := svc.Chat(ctx, AssistantRequest{UserID: "u1", Prompt: "hi", Provider: models.ProviderSpec{Name: "openai"}})
	require.Error(t, err)

	settings, err := st.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, settings.Provider)
}

func TestAssistantEmptyPrompt(t *testing.T) {
	svc := NewAssistantService(newStore(t), &fakeDispatcher{}, nil)
	_, err := svc.Chat(context.Background(), AssistantRequest{UserID: "u1", Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestSettingsService(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(newStore(t))

	got, err := svc.SetLanguage(ctx, "u1", " ES ")
	require.NoError(t, err)
	assert.Equal(t, "es", got.Language)

	_, err = svc.SetLanguage(ctx, "u1", "x")
	assert.ErrorIs(t, err, ErrInvalidLanguage)
	_, err = svc.SetLanguage(ctx, "u1", "toolong")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	got, err = svc.SetTimezone(ctx, "u1", "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", got.Timezone)
	_, err = svc.SetTimezone(ctx, "u1", "Not/AZone")
	assert.ErrorIs(t, err, window.ErrInvalidTimezone)

	got, err = svc.SetThreadMode(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, got.ThreadMode)

	got, err = svc.SetPreference(ctx, "u1", "OLLAMA", "llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "ollama", got.Provider)
	assert.Equal(t, "llama3.2", got.Model)
	_, err = svc.SetPreference(ctx, "u1", "nonexistent", "")
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)

	_, err = svc.SetAPIKey(ctx, "u1", "gemini", "short")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	got, err = svc.SetAPIKey(ctx, "u1", "Gemini", "AIza-0123456789")
	require.NoError(t, err)
	assert.Equal(t, "AIza-0123456789", got.CredentialFor("gemini"))

	removed, err := svc.RemoveAPIKey(ctx, "u1", "gemini")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.RemoveAPIKey(ctx, "u1", "gemini")
	require.NoError(t, err)
	assert.False(t, removed)

	final, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "es", final.Language)
	assert.Equal(t, "America/Chicago", final.Timezone)
}
