package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"convoke/internal/config"
	"convoke/internal/logging"
	"convoke/internal/prompt"
)

// degradedStrikes before a degraded provider is marked unavailable.
const degradedStrikes = 3

type providerState struct {
	provider  Provider
	status    HealthStatus
	lastCheck time.Time
	strikes   int
}

// Gateway fans generation requests out over the configured providers
// with health-aware selection and ordered fallback.
type Gateway struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]*providerState

	preferred     string
	maxFallbacks  int
	healthTimeout time.Duration
	probeInterval time.Duration
	maxTimeout    time.Duration

	stopProbe chan struct{}
	probeWg   sync.WaitGroup
	log       *zap.Logger
}

// NewGateway builds a gateway from configuration. Providers that cannot
// be constructed (e.g. gemini without a key) are logged and skipped.
func NewGateway(cfg config.LLMConfig) *Gateway {
	g := &Gateway{
		providers:     make(map[string]*providerState),
		preferred:     cfg.Provider,
		maxFallbacks:  cfg.MaxFallbacks,
		healthTimeout: time.Duration(cfg.HealthTimeoutMs) * time.Millisecond,
		probeInterval: time.Duration(cfg.HealthIntervalSeconds) * time.Second,
		maxTimeout:    time.Duration(cfg.ProviderMaxTimeoutMs) * time.Millisecond,
		log:           logging.Named("llm"),
	}
	if g.maxFallbacks <= 0 {
		g.maxFallbacks = 3
	}
	if g.healthTimeout <= 0 {
		g.healthTimeout = 5 * time.Second
	}
	if g.maxTimeout <= 0 {
		g.maxTimeout = 2 * time.Minute
	}

	for _, pc := range cfg.Providers {
		p, err := buildProvider(pc)
		if err != nil {
			g.log.Warn("skipping provider", zap.String("name", pc.Name), zap.Error(err))
			continue
		}
		g.Register(p)
	}
	return g
}

func buildProvider(pc config.ProviderConfig) (Provider, error) {
	switch pc.Kind {
	case "ollama":
		return NewOllamaProvider(pc.Name, pc.Endpoint, pc.Model), nil
	case "openai":
		return NewOpenAIProvider(pc.Name, pc.Endpoint, pc.APIKey, pc.Model), nil
	case "anthropic":
		return NewAnthropicProvider(pc.Name, pc.Endpoint, pc.APIKey, pc.Model), nil
	case "gemini":
		return NewGeminiProvider(pc.Name, pc.APIKey, pc.Model)
	case "custom":
		if pc.Endpoint == "" {
			return nil, fmt.Errorf("custom provider %q needs an endpoint", pc.Name)
		}
		return NewCustomProvider(pc.Name, pc.Endpoint, pc.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

// Register appends a provider to the fallback order with unknown health.
func (g *Gateway) Register(p Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.providers[p.Name()]; exists {
		return
	}
	g.order = append(g.order, p.Name())
	g.providers[p.Name()] = &providerState{provider: p, status: HealthUnknown}
}

// Generate picks a provider and runs the envelope through it, advancing
// through the fallback order on retriable failures.
func (g *Gateway) Generate(ctx context.Context, env prompt.Envelope) (Completion, error) {
	candidates := g.candidates(env.PreferredProvider)
	if len(candidates) == 0 {
		return Completion{}, &Error{Kind: KindUnavailable, Provider: "none", Err: fmt.Errorf("no providers configured")}
	}

	timeout := g.maxTimeout
	if env.Params.TimeoutMs > 0 {
		if d := time.Duration(env.Params.TimeoutMs) * time.Millisecond; d < timeout {
			timeout = d
		}
	}

	attempts := g.maxFallbacks
	if attempts > len(candidates) {
		attempts = len(candidates)
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		name := candidates[i]
		g.mu.RLock()
		st, ok := g.providers[name]
		g.mu.RUnlock()
		if !ok {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		completion, err := st.provider.Generate(reqCtx, env)
		cancel()

		if err == nil {
			g.markHealthy(name)
			return completion, nil
		}
		lastErr = err

		kind := KindOf(err)
		g.log.Warn("provider failed",
			zap.String("provider", name),
			zap.String("kind", string(kind)),
			zap.Error(err))
		if !retriable(kind) {
			return Completion{}, err
		}
		g.markDegraded(name)
	}

	return Completion{}, &Error{Kind: KindUnavailable, Provider: "all", Err: lastErr}
}

// candidates returns provider names in attempt order: the preferred one
// first when healthy or unprobed, then the configured order filtered to
// healthy/unknown, then the rest as a last resort.
func (g *Gateway) candidates(preferred string) []string {
	if preferred == "" {
		preferred = g.preferred
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	// Unknown counts as eligible: health is only established by a probe
	// or an attempt, and a failed attempt demotes the provider before the
	// next selection.
	if st, ok := g.providers[preferred]; ok && (st.status == HealthHealthy || st.status == HealthUnknown) {
		add(preferred)
	}
	for _, name := range g.order {
		if st := g.providers[name]; st.status == HealthHealthy || st.status == HealthUnknown {
			add(name)
		}
	}
	// Degraded and unavailable providers remain reachable as a last
	// resort; selection re-validates on failure anyway.
	for _, name := range g.order {
		add(name)
	}
	return out
}

func (g *Gateway) markHealthy(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.providers[name]; ok {
		st.status = HealthHealthy
		st.strikes = 0
		st.lastCheck = time.Now()
	}
}

func (g *Gateway) markDegraded(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.providers[name]; ok {
		st.strikes++
		st.status = HealthDegraded
		if st.strikes >= degradedStrikes {
			st.status = HealthUnavailable
		}
		st.lastCheck = time.Now()
	}
}

// StartProber launches the background health prober. No-op when the
// probe interval is unset.
func (g *Gateway) StartProber() {
	if g.probeInterval <= 0 {
		return
	}
	g.mu.Lock()
	if g.stopProbe != nil {
		g.mu.Unlock()
		return
	}
	g.stopProbe = make(chan struct{})
	stop := g.stopProbe
	g.mu.Unlock()

	g.probeWg.Add(1)
	go func() {
		defer g.probeWg.Done()
		ticker := time.NewTicker(g.probeInterval)
		defer ticker.Stop()
		g.ProbeAll(context.Background())
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.ProbeAll(context.Background())
			}
		}
	}()
}

// StopProber stops the background prober and waits for it.
func (g *Gateway) StopProber() {
	g.mu.Lock()
	if g.stopProbe == nil {
		g.mu.Unlock()
		return
	}
	close(g.stopProbe)
	g.stopProbe = nil
	g.mu.Unlock()
	g.probeWg.Wait()
}

// ProbeAll health-checks every provider once.
func (g *Gateway) ProbeAll(ctx context.Context) {
	g.mu.RLock()
	names := append([]string(nil), g.order...)
	g.mu.RUnlock()

	for _, name := range names {
		g.mu.RLock()
		st, ok := g.providers[name]
		g.mu.RUnlock()
		if !ok {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, g.healthTimeout)
		err := st.provider.Probe(probeCtx)
		cancel()

		if err != nil {
			g.markDegraded(name)
			g.log.Debug("probe failed", zap.String("provider", name), zap.Error(err))
		} else {
			g.markHealthy(name)
		}
	}
}

// Health returns a snapshot of all provider health states in order.
func (g *Gateway) Health() []ProviderHealth {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ProviderHealth, 0, len(g.order))
	for _, name := range g.order {
		st := g.providers[name]
		out = append(out, ProviderHealth{Name: name, Status: st.status, LastCheck: st.lastCheck})
	}
	return out
}
