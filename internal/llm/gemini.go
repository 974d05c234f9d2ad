package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"convoke/internal/prompt"
)

// GeminiProvider talks to the Google Gemini generate API through the
// official genai SDK.
type GeminiProvider struct {
	name   string
	model  string
	client *genai.Client
}

// NewGeminiProvider builds a Gemini binding.
func NewGeminiProvider(name, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{name: name, model: model, client: client}, nil
}

func (p *GeminiProvider) Name() string { return p.name }

func (p *GeminiProvider) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	contents := make([]*genai.Content, 0, len(env.Messages))
	for _, m := range env.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(env.Params.Temperature)),
		MaxOutputTokens: int32(env.Params.MaxTokens),
		StopSequences:   env.Params.Stop,
	}
	if env.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(env.SystemPrompt, genai.RoleUser)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return Completion{}, &Error{Kind: classifyTransport(ctx, err), Provider: p.name, Err: err}
	}

	text := result.Text()
	if text == "" {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("empty gemini response")}
	}

	out := Completion{Text: text, ProviderName: p.name, Model: p.model}
	if um := result.UsageMetadata; um != nil {
		out.Usage = Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
		}
	}
	return out, nil
}

// Probe issues a minimal generation request.
func (p *GeminiProvider) Probe(ctx context.Context) error {
	contents := []*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)}
	_, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("gemini probe: %w", err)
	}
	return nil
}
