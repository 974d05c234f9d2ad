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

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIProvider builds an OpenAI-compatible binding.
func NewOpenAIProvider(name, baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	messages := make([]openAIMessage, 0, len(env.Messages)+1)
	if env.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: env.SystemPrompt})
	}
	for _, m := range env.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(openAIRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: env.Params.Temperature,
		MaxTokens:   env.Params.MaxTokens,
		Stop:        env.Params.Stop,
	})
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var resp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	if resp.Error != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("%s", resp.Error.Message)}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("no choices in response")}
	}

	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
		ProviderName: p.name,
		Model:        p.model,
	}, nil
}

// Probe lists models, the cheapest authenticated round-trip the API
// offers.
func (p *OpenAIProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("openai probe status %d", resp.StatusCode)
	}
	return nil
}
