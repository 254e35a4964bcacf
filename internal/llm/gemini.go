package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/raphaelgruber/recap/internal/models"
)

type geminiProvider struct {
	cfg ProviderConfig
}

func newGemini(cfg ProviderConfig) (Provider, error) {
	return &geminiProvider{cfg: cfg}, nil
}

// Chat implements Provider using the Gemini API.
func (p *geminiProvider) Chat(ctx context.Context, messages []models.ChatMessage) (Reply, error) {
	if p.cfg.APIKey == "" {
		return Reply{}, fmt.Errorf("%w: %s", ErrCredentialMissing, Gemini)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  p.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return Reply{}, providerError(Gemini, fmt.Errorf("create client: %w", err))
	}

	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}

	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := client.Models.GenerateContent(ctx, p.cfg.Model, contents, cfg)
	if err != nil {
		return Reply{}, providerError(Gemini, err)
	}

	text := res.Text()
	if text == "" {
		return Reply{}, providerError(Gemini, fmt.Errorf("empty response"))
	}

	reply := Reply{Text: text}
	if res.UsageMetadata != nil {
		reply.InputTokens = int64(res.UsageMetadata.PromptTokenCount)
		reply.OutputTokens = int64(res.UsageMetadata.CandidatesTokenCount)
	}
	return reply, nil
}
