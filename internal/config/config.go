// Package config loads recap configuration from the environment and an
// optional YAML provider file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/recap/internal/llm"
)

// Store backends.
const (
	StoreSQLite    = "sqlite"
	StoreSurrealDB = "surrealdb"
)

// DefaultMaxMessages is the single per-request message ceiling.
const DefaultMaxMessages = 2000

// Config holds all configuration values.
type Config struct {
	// Discord
	DiscordToken   string
	DiscordAPI     string
	RequestTimeout time.Duration

	// Persistence
	Store  string
	DBPath string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Backends
	AssistantProvider string
	AssistantModel    string
	Providers         map[llm.Name]llm.ProviderConfig
	ProvidersFile     string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Requests
	UserID      string
	MaxMessages int
}

// providersFile is the YAML document read from RECAP_PROVIDERS_FILE.
type providersFile struct {
	Provider  string                         `yaml:"provider"`
	Model     string                         `yaml:"model"`
	Providers map[string]llm.ProviderConfig `yaml:"providers"`
}

// Load reads configuration from environment variables, then applies the
// provider file if one is configured.
func Load() (Config, error) {
	cfg := Config{
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordAPI:     getEnv("DISCORD_API_URL", "https://discord.com/api/v10"),
		RequestTimeout: parseDuration(getEnv("RECAP_REQUEST_TIMEOUT", "30s"), 30*time.Second),

		Store:  strings.ToLower(getEnv("RECAP_STORE", StoreSQLite)),
		DBPath: getEnv("RECAP_DB", defaultDBPath()),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "recap"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "recap"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		AssistantProvider: getEnv("ASSISTANT_PROVIDER", string(llm.DefaultProvider)),
		AssistantModel:    os.Getenv("ASSISTANT_MODEL"),
		Providers: map[llm.Name]llm.ProviderConfig{
			llm.Gemini:       {APIKey: getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))},
			llm.OpenAI:       {APIKey: os.Getenv("OPENAI_API_KEY")},
			llm.Anthropic:    {APIKey: os.Getenv("ANTHROPIC_API_KEY")},
			llm.Ollama:       {BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434")},
			llm.LMStudio:     {BaseURL: getEnv("LMSTUDIO_BASE_URL", "http://localhost:1234/v1")},
			llm.OpenAICompat: {BaseURL: os.Getenv("ASSISTANT_BASE_URL"), APIKey: os.Getenv("OPENAI_API_KEY")},
			llm.Bedrock:      {Region: getEnv("AWS_REGION", "us-east-1")},
		},
		ProvidersFile: os.Getenv("RECAP_PROVIDERS_FILE"),

		LogFile:  getEnv("RECAP_LOG_FILE", filepath.Join(os.TempDir(), "recap.log")),
		LogLevel: parseLogLevel(getEnv("RECAP_LOG_LEVEL", "WARN")),

		UserID:      getEnv("RECAP_USER", currentUser()),
		MaxMessages: parseInt(getEnv("RECAP_MAX_MESSAGES", ""), DefaultMaxMessages),
	}

	if cfg.Store != StoreSQLite && cfg.Store != StoreSurrealDB {
		return Config{}, fmt.Errorf("RECAP_STORE: unsupported store %q (want %s or %s)", cfg.Store, StoreSQLite, StoreSurrealDB)
	}

	if cfg.ProvidersFile != "" {
		if err := cfg.applyProvidersFile(cfg.ProvidersFile); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// applyProvidersFile overlays non-empty values from a YAML provider file.
func (c *Config) applyProvidersFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read providers file: %w", err)
	}

	var pf providersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse providers file %s: %w", path, err)
	}

	if pf.Provider != "" {
		c.AssistantProvider = pf.Provider
	}
	if pf.Model != "" {
		c.AssistantModel = pf.Model
	}

	for raw, override := range pf.Providers {
		name, ok := llm.ParseName(raw)
		if !ok {
			return fmt.Errorf("providers file %s: unknown provider %q", path, raw)
		}
		pc := c.Providers[name]
		if override.APIKey != "" {
			pc.APIKey = override.APIKey
		}
		if override.Model != "" {
			pc.Model = override.Model
		}
		if override.BaseURL != "" {
			pc.BaseURL = override.BaseURL
		}
		if override.Region != "" {
			pc.Region = override.Region
		}
		c.Providers[name] = pc
	}
	return nil
}

// LLMDefaults returns the dispatcher fallbacks derived from this config.
func (c Config) LLMDefaults() llm.Defaults {
	return llm.Defaults{
		Provider:  c.AssistantProvider,
		Model:     c.AssistantModel,
		Providers: c.Providers,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recap.db"
	}
	return filepath.Join(home, ".recap", "recap.db")
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
