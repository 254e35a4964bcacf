package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/recap/internal/metrics"
	"github.com/raphaelgruber/recap/internal/models"
)

// Defaults are the process-wide fallbacks below request and user settings.
type Defaults struct {
	Provider string
	Model    string
	// Providers holds per-backend configuration (key, model, base URL, region).
	Providers map[Name]ProviderConfig
}

// Result is a successful dispatch with the values that were resolved.
type Result struct {
	Text     string
	Provider Name
	Model    string
	// ModelPreference is the model named by the request, the user's settings
	// or the process defaults. It is empty when the backend's own default
	// was used.
	ModelPreference string
	InputTokens  int64
	OutputTokens int64
}

// Dispatcher picks a backend per call and forwards the conversation.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	defaults  Defaults
	factories map[Name]Factory
	metrics   *metrics.Collector
	logger    *slog.Logger
	strict    bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFactory replaces the constructor for one backend.
func WithFactory(name Name, f Factory) Option {
	return func(d *Dispatcher) { d.factories[name] = f }
}

// WithMetrics records per-backend calls, failures, timing and token usage.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithStrict rejects unknown provider names with ErrUnknownProvider instead
// of falling back to DefaultProvider.
func WithStrict() Option {
	return func(d *Dispatcher) { d.strict = true }
}

// NewDispatcher creates a Dispatcher over the built-in backends.
func NewDispatcher(defaults Defaults, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		defaults:  defaults,
		factories: builtinFactories(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve applies the precedence chain, per field:
//
//	provider:   request, settings, defaults, DefaultProvider
//	model:      request, settings, defaults, per-backend config, built-in
//	credential: request, settings key for the backend, per-backend config
func (d *Dispatcher) Resolve(req models.ProviderSpec, settings models.Settings) (ProviderConfig, error) {
	raw := firstNonEmpty(req.Name, settings.Provider, d.defaults.Provider, string(DefaultProvider))
	name, ok := ParseName(raw)
	if !ok {
		if d.strict {
			return ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
		}
		d.logger.Warn("unknown provider, falling back to default", "requested", raw, "fallback", DefaultProvider)
		name = DefaultProvider
	}

	pc := d.defaults.Providers[name]
	return ProviderConfig{
		Name:    name,
		Model:   firstNonEmpty(d.preferredModel(req, settings), pc.Model, DefaultModel(name)),
		APIKey:  firstNonEmpty(req.Credential, settings.CredentialFor(string(name)), pc.APIKey),
		BaseURL: pc.BaseURL,
		Region:  pc.Region,
	}, nil
}

// preferredModel is the model chosen above the per-backend layers.
func (d *Dispatcher) preferredModel(req models.ProviderSpec, settings models.Settings) string {
	return firstNonEmpty(req.Model, settings.Model, d.defaults.Model)
}

// Dispatch resolves a backend and sends messages to it. One attempt is made;
// failures are wrapped in ErrProviderError.
func (d *Dispatcher) Dispatch(ctx context.Context, messages []models.ChatMessage, req models.ProviderSpec, settings models.Settings) (Result, error) {
	cfg, err := d.Resolve(req, settings)
	if err != nil {
		return Result{}, err
	}

	factory, ok := d.factories[cfg.Name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
	provider, err := factory(cfg)
	if err != nil {
		d.metrics.RecordChatFailure(string(cfg.Name))
		return Result{}, providerError(cfg.Name, err)
	}

	logger := d.logger.With("provider", cfg.Name, "model", cfg.Model)
	logger.Debug("dispatching chat", "messages", len(messages))

	start := time.Now()
	reply, err := provider.Chat(ctx, messages)
	elapsed := time.Since(start)
	if err != nil {
		d.metrics.RecordChatFailure(string(cfg.Name))
		logger.Debug("chat failed", "duration_ms", elapsed.Milliseconds(), "error", err)
		return Result{}, err
	}

	d.metrics.RecordChat(string(cfg.Name), elapsed, reply.InputTokens, reply.OutputTokens)
	logger.Debug("chat completed",
		"duration_ms", elapsed.Milliseconds(),
		"input_tokens", reply.InputTokens,
		"output_tokens", reply.OutputTokens,
	)

	return Result{
		Text:            reply.Text,
		Provider:        cfg.Name,
		Model:           cfg.Model,
		ModelPreference: d.preferredModel(req, settings),
		InputTokens:     reply.InputTokens,
		OutputTokens:    reply.OutputTokens,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
