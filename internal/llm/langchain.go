package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/recap/internal/models"
)

// compatPlaceholderKey satisfies OpenAI-compatible servers that ignore auth.
const compatPlaceholderKey = "nokey"

// langchainProvider runs a langchaingo model built lazily on first use.
type langchainProvider struct {
	cfg          ProviderConfig
	needsBaseURL bool
	newModel     func(cfg ProviderConfig) (llms.Model, error)
}

func newOpenAI(cfg ProviderConfig) (Provider, error) {
	return &langchainProvider{cfg: cfg, newModel: func(cfg ProviderConfig) (llms.Model, error) {
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	}}, nil
}

// newOpenAICompat serves lmstudio, openai_compat and any server speaking
// the OpenAI chat completions protocol.
func newOpenAICompat(cfg ProviderConfig) (Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = builtinBaseURLs[cfg.Name]
	}
	return &langchainProvider{cfg: cfg, needsBaseURL: true, newModel: func(cfg ProviderConfig) (llms.Model, error) {
		token := cfg.APIKey
		if token == "" {
			token = compatPlaceholderKey
		}
		return openai.New(
			openai.WithToken(token),
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
		)
	}}, nil
}

func newAnthropic(cfg ProviderConfig) (Provider, error) {
	return &langchainProvider{cfg: cfg, newModel: func(cfg ProviderConfig) (llms.Model, error) {
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	}}, nil
}

func newOllama(cfg ProviderConfig) (Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = builtinBaseURLs[Ollama]
	}
	return &langchainProvider{cfg: cfg, newModel: func(cfg ProviderConfig) (llms.Model, error) {
		return ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
	}}, nil
}

// Chat implements Provider.
func (p *langchainProvider) Chat(ctx context.Context, messages []models.ChatMessage) (Reply, error) {
	if RequiresCredential(p.cfg.Name) && p.cfg.APIKey == "" {
		return Reply{}, fmt.Errorf("%w: %s", ErrCredentialMissing, p.cfg.Name)
	}
	if p.needsBaseURL && p.cfg.BaseURL == "" {
		return Reply{}, providerError(p.cfg.Name, errors.New("base URL required"))
	}

	model, err := p.newModel(p.cfg)
	if err != nil {
		return Reply{}, providerError(p.cfg.Name, fmt.Errorf("create model: %w", err))
	}
	return generate(ctx, p.cfg.Name, model, messages)
}

// generate sends the conversation through any langchaingo model.
func generate(ctx context.Context, name Name, model llms.Model, messages []models.ChatMessage) (Reply, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	response, err := model.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return Reply{}, providerError(name, err)
	}

	if len(response.Choices) == 0 {
		return Reply{}, providerError(name, fmt.Errorf("no response choices"))
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	return Reply{Text: choice.Content, InputTokens: in, OutputTokens: out}, nil
}

// tokenUsage reads token counts from langchaingo generation info. Key names
// differ between backends.
func tokenUsage(info map[string]any) (input, output int64) {
	input = firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
	output = firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
	return input, output
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
