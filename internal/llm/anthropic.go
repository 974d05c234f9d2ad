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

const anthropicVersion = "2023-06-01"

// AnthropicProvider talks to an Anthropic-compatible messages API.
type AnthropicProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAnthropicProvider builds an Anthropic binding.
func NewAnthropicProvider(name, baseURL, apiKey, model string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	return &AnthropicProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

func (p *AnthropicProvider) Name() string { return p.name }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	maxTokens := env.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	// The messages API requires alternating roles starting with user;
	// coalesce consecutive same-role turns.
	var messages []anthropicMessage
	for _, m := range env.Messages {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content += "\n\n" + m.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: role, Content: m.Content})
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      env.SystemPrompt,
		Messages:    messages,
		Temperature: env.Params.Temperature,
		Stop:        env.Params.Stop,
	})
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	if resp.Error != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("%s: %s", resp.Error.Type, resp.Error.Message)}
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("no text content in response")}
	}

	return Completion{
		Text: text.String(),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
		ProviderName: p.name,
		Model:        p.model,
	}, nil
}

// Probe sends a one-token message; Anthropic exposes no cheaper
// authenticated endpoint.
func (p *AnthropicProvider) Probe(ctx context.Context) error {
	body, _ := json.Marshal(anthropicRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
	})
	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("anthropic probe status %d", resp.StatusCode)
	}
	return nil
}
