package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"convoke/internal/prompt"
)

// CustomProvider posts the flattened prompt to an arbitrary HTTP
// endpoint. The endpoint contract is `POST {system, prompt}` returning
// `{text}`; useful for in-house gateways and for tests.
type CustomProvider struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewCustomProvider builds a custom HTTP binding.
func NewCustomProvider(name, endpoint, apiKey string) *CustomProvider {
	return &CustomProvider{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{},
	}
}

func (p *CustomProvider) Name() string { return p.name }

type customRequest struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

type customResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (p *CustomProvider) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	var userOnly prompt.Envelope
	userOnly.Messages = env.Messages

	body, err := json.Marshal(customRequest{
		System:      env.SystemPrompt,
		Prompt:      flattenEnvelope(userOnly),
		Temperature: env.Params.Temperature,
		MaxTokens:   env.Params.MaxTokens,
	})
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

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

	var resp customResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: err}
	}
	if resp.Error != "" {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("%s", resp.Error)}
	}
	if resp.Text == "" {
		return Completion{}, &Error{Kind: KindProtocol, Provider: p.name, Err: fmt.Errorf("empty text in response")}
	}

	return Completion{Text: resp.Text, ProviderName: p.name}, nil
}

// Probe sends a HEAD request; endpoints that reject HEAD still prove
// reachability with any response.
func (p *CustomProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "HEAD", p.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
