package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"convoke/internal/prompt"
)

// OllamaProvider talks to an Ollama-compatible local HTTP endpoint via
// its native /api/generate API.
type OllamaProvider struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider builds an Ollama binding.
func NewOllamaProvider(name, baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:8b"
	}
	return &OllamaProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (p *OllamaProvider) Name() string { return p.name }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	EvalCount       int    `json:"eval_count"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	Error           string `json:"error,omitempty"`
}

// Generate maps the envelope to a flat prompt, the shape Ollama's
// generate endpoint expects.
func (p *OllamaProvider) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	reqBody := ollamaRequest{
		Model:  p.model,
		Prompt: flattenEnvelope(env),
		Options: map[string]any{
			"temperature": env.Params.Temperature,
			"num_predict": env.Params.MaxTokens,
		},
	}
	if len(env.Params.Stop) > 0 {
		reqBody.Options["stop"] = env.Params.Stop
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return Completion{}, &Error{Kind: classifyTransport(ctx, err), Provider: p.name, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(httpResp.Body)
		return Completion{}, &Error{
			Kind:     classifyHTTPStatus(httpResp.StatusCode),
			Provider: p.name,
			Err:      fmt.Errorf("status %d: %s", httpResp.StatusCode, string(b)),
		}
	}

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	if resp.Error != "" {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("%s", resp.Error)}
	}
	if resp.Response == "" {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("empty response")}
	}

	return Completion{
		Text:         resp.Response,
		Usage:        Usage{PromptTokens: resp.PromptEvalCount, CompletionTokens: resp.EvalCount},
		ProviderName: p.name,
		Model:        p.model,
	}, nil
}

// Probe checks the model listing endpoint.
func (p *OllamaProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama probe status %d", resp.StatusCode)
	}
	return nil
}

// flattenEnvelope renders an envelope as a single prompt string for
// completion-style APIs.
func flattenEnvelope(env prompt.Envelope) string {
	var b strings.Builder
	if env.SystemPrompt != "" {
		b.WriteString("System: ")
		b.WriteString(env.SystemPrompt)
		b.WriteString("\n\n")
	}
	for _, m := range env.Messages {
		switch m.Role {
		case "assistant":
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Assistant: ")
	return b.String()
}
