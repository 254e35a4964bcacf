// Package llm dispatches chat requests to interchangeable generative-text
// backends with per-user model and credential overrides.
package llm

import (
	"context"
	"slices"
	"strings"

	"github.com/raphaelgruber/recap/internal/models"
)

// Name identifies a backend in the closed registry.
type Name string

// Supported backends.
const (
	Gemini       Name = "gemini"
	OpenAI       Name = "openai"
	Anthropic    Name = "anthropic"
	Ollama       Name = "ollama"
	LMStudio     Name = "lmstudio"
	OpenAICompat Name = "openai_compat"
	Bedrock      Name = "bedrock"
)

// DefaultProvider is used when nothing else names a backend, and as the
// fallback for unknown names.
const DefaultProvider = Gemini

// Generation parameters shared by every backend.
const (
	temperature = 0.7
	maxTokens   = 1000
)

var builtinModels = map[Name]string{
	Gemini:       "gemini-2.5-flash",
	OpenAI:       "gpt-4o-mini",
	Anthropic:    "claude-3-5-sonnet-latest",
	Ollama:       "llama3.1:latest",
	LMStudio:     "local-model",
	OpenAICompat: "llama3.1:latest",
	Bedrock:      "anthropic.claude-3-haiku-20240307-v1:0",
}

var builtinBaseURLs = map[Name]string{
	Ollama:   "http://localhost:11434",
	LMStudio: "http://localhost:1234/v1",
}

// Names returns every registered backend name, sorted.
func Names() []Name {
	names := make([]Name, 0, len(builtinModels))
	for n := range builtinModels {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ParseName resolves a backend name case-insensitively.
func ParseName(s string) (Name, bool) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	_, ok := builtinModels[n]
	return n, ok
}

// DefaultModel returns the built-in model for a backend.
func DefaultModel(n Name) string {
	return builtinModels[n]
}

// RequiresCredential reports whether a backend refuses to run without a key.
// Local backends and Bedrock (AWS default credential chain) do not.
func RequiresCredential(n Name) bool {
	switch n {
	case Gemini, OpenAI, Anthropic:
		return true
	}
	return false
}

// Reply is a backend's answer plus token usage when the backend reports it.
type Reply struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider is one backend variant.
type Provider interface {
	Chat(ctx context.Context, messages []models.ChatMessage) (Reply, error)
}

// ProviderConfig is the fully resolved configuration for one call.
type ProviderConfig struct {
	Name    Name   `yaml:"-"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region"`
}

// Factory builds a Provider. It must not fail because of a missing
// credential; that is reported by Chat.
type Factory func(cfg ProviderConfig) (Provider, error)

func builtinFactories() map[Name]Factory {
	return map[Name]Factory{
		Gemini:       newGemini,
		OpenAI:       newOpenAI,
		Anthropic:    newAnthropic,
		Ollama:       newOllama,
		LMStudio:     newOpenAICompat,
		OpenAICompat: newOpenAICompat,
		Bedrock:      newBedrock,
	}
}

// splitSystem separates system directives from the rest of the conversation.
func splitSystem(messages []models.ChatMessage) (system string, rest []models.ChatMessage) {
	var parts []string
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}
