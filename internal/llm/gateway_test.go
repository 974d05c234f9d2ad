package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"convoke/internal/config"
	"convoke/internal/prompt"
)

type fakeProvider struct {
	name     string
	text     string
	err      error
	calls    atomic.Int32
	probeErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Completion{}, f.err
	}
	return Completion{Text: f.text, ProviderName: f.name}, nil
}

func (f *fakeProvider) Probe(ctx context.Context) error { return f.probeErr }

func newTestGateway(providers ...Provider) *Gateway {
	g := NewGateway(config.LLMConfig{MaxFallbacks: 3, HealthTimeoutMs: 1000})
	for _, p := range providers {
		g.Register(p)
	}
	return g
}

func TestGenerateUsesFirstHealthy(t *testing.T) {
	a := &fakeProvider{name: "a", text: "from a"}
	b := &fakeProvider{name: "b", text: "from b"}
	g := newTestGateway(a, b)

	c, err := g.Generate(context.Background(), prompt.Envelope{})
	require.NoError(t, err)
	require.Equal(t, "from a", c.Text)
	require.Equal(t, "a", c.ProviderName)
	require.Equal(t, int32(0), b.calls.Load())
}

func TestGenerateFallsBackOnRetriable(t *testing.T) {
	a := &fakeProvider{name: "a", err: &Error{Kind: KindUnavailable, Provider: "a"}}
	b := &fakeProvider{name: "b", text: "rescued"}
	g := newTestGateway(a, b)

	c, err := g.Generate(context.Background(), prompt.Envelope{})
	require.NoError(t, err)
	require.Equal(t, "rescued", c.Text)

	// a should now be degraded and skipped on the next call
	health := g.Health()
	require.Equal(t, HealthDegraded, health[0].Status)
	require.Equal(t, HealthHealthy, health[1].Status)
}

func TestGenerateDoesNotRetryBadRequest(t *testing.T) {
	a := &fakeProvider{name: "a", err: &Error{Kind: KindBadRequest, Provider: "a"}}
	b := &fakeProvider{name: "b", text: "never"}
	g := newTestGateway(a, b)

	_, err := g.Generate(context.Background(), prompt.Envelope{})
	require.Error(t, err)
	require.Equal(t, KindBadRequest, KindOf(err))
	require.Equal(t, int32(0), b.calls.Load())
}

func TestGenerateAllExhausted(t *testing.T) {
	a := &fakeProvider{name: "a", err: &Error{Kind: KindTimeout, Provider: "a"}}
	b := &fakeProvider{name: "b", err: &Error{Kind: KindRateLimited, Provider: "b"}}
	g := newTestGateway(a, b)

	_, err := g.Generate(context.Background(), prompt.Envelope{})
	require.Error(t, err)
	require.Equal(t, KindUnavailable, KindOf(err))
}

func TestPreferredProviderWins(t *testing.T) {
	a := &fakeProvider{name: "a", text: "from a"}
	b := &fakeProvider{name: "b", text: "from b"}
	g := newTestGateway(a, b)

	c, err := g.Generate(context.Background(), prompt.Envelope{PreferredProvider: "b"})
	require.NoError(t, err)
	require.Equal(t, "b", c.ProviderName)
}

func TestRepeatedDegradationMarksUnavailable(t *testing.T) {
	a := &fakeProvider{name: "a", err: &Error{Kind: KindUnavailable, Provider: "a"}}
	g := newTestGateway(a)

	for i := 0; i < degradedStrikes; i++ {
		_, err := g.Generate(context.Background(), prompt.Envelope{})
		require.Error(t, err)
	}
	require.Equal(t, HealthUnavailable, g.Health()[0].Status)
}

func TestProbeAllUpdatesHealth(t *testing.T) {
	good := &fakeProvider{name: "good"}
	bad := &fakeProvider{name: "bad", probeErr: errors.New("dead")}
	g := newTestGateway(good, bad)

	g.ProbeAll(context.Background())

	health := g.Health()
	require.Equal(t, HealthHealthy, health[0].Status)
	require.Equal(t, HealthDegraded, health[1].Status)
	require.False(t, health[0].LastCheck.IsZero())
}

func TestOllamaProviderAgainstStub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		w.Write([]byte(`{"response":"pong","eval_count":3,"prompt_eval_count":7}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider("local", srv.URL, "test-model")
	c, err := p.Generate(context.Background(), prompt.Envelope{
		SystemPrompt: "sys",
		Messages:     []prompt.TurnMessage{{Role: "user", Content: "ping"}},
		Params:       prompt.Params{Temperature: 0.2, MaxTokens: 16},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", c.Text)
	require.Equal(t, 3, c.Usage.CompletionTokens)
	require.Equal(t, 7, c.Usage.PromptTokens)
}

func TestOpenAIProviderClassifiesStatuses(t *testing.T) {
	for status, want := range map[int]ErrorKind{
		429: KindRateLimited,
		500: KindUnavailable,
		400: KindBadRequest,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		p := NewOpenAIProvider("oai", srv.URL, "key", "model")
		_, err := p.Generate(context.Background(), prompt.Envelope{})
		require.Error(t, err)
		require.Equal(t, want, KindOf(err), "status %d", status)
		srv.Close()
	}
}

func TestAnthropicProviderCoalescesRoles(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("ant", srv.URL, "key", "model")
	c, err := p.Generate(context.Background(), prompt.Envelope{
		Messages: []prompt.TurnMessage{
			{Role: "user", Content: "one"},
			{Role: "user", Content: "two"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "three"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "ok", c.Text)
	// consecutive user turns must be merged, not sent back to back
	require.Contains(t, string(gotBody), "one\\n\\ntwo")
}

func TestCustomProviderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"custom says hi"}`))
	}))
	defer srv.Close()

	p := NewCustomProvider("mine", srv.URL, "")
	c, err := p.Generate(context.Background(), prompt.Envelope{
		Messages: []prompt.TurnMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "custom says hi", c.Text)
}

func TestGatewayFromConfigSkipsBroken(t *testing.T) {
	g := NewGateway(config.LLMConfig{
		Providers: []config.ProviderConfig{
			{Name: "c1", Kind: "custom"}, // no endpoint, skipped
			{Name: "o1", Kind: "ollama", Endpoint: "http://localhost:11434"},
		},
	})
	require.Len(t, g.Health(), 1)
	require.Equal(t, "o1", g.Health()[0].Name)
}
