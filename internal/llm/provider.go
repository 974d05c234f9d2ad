// Package llm provides a uniform gateway over multiple LLM provider
// backends with health probing and ordered fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"convoke/internal/prompt"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rateLimited"
	KindBadRequest  ErrorKind = "badRequest"
	KindProtocol    ErrorKind = "protocol"
)

// Error is a classified provider failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s (%s): %v", e.Kind, e.Provider, e.Err)
	}
	return fmt.Sprintf("llm %s (%s)", e.Kind, e.Provider)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind; protocol for unclassified errors.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindProtocol
}

// retriable reports whether the gateway should advance to the next
// candidate after this failure.
func retriable(kind ErrorKind) bool {
	switch kind {
	case KindUnavailable, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}

// Usage carries token accounting where the provider reports it.
type Usage struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
}

// Completion is a successful generation result.
type Completion struct {
	Text         string `json:"text"`
	Usage        Usage  `json:"usage"`
	ProviderName string `json:"providerName"`
	Model        string `json:"model,omitempty"`
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, env prompt.Envelope) (Completion, error)
	// Probe performs a lightweight health check.
	Probe(ctx context.Context) error
}

// HealthStatus of a provider as observed by the prober and the
// selection path.
type HealthStatus string

const (
	HealthUnknown     HealthStatus = "unknown"
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
)

// ProviderHealth is a snapshot of one provider's health state.
type ProviderHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	LastCheck time.Time    `json:"lastCheck,omitempty"`
}

// classifyHTTPStatus maps an HTTP status to an error kind.
func classifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindBadRequest
	default:
		return KindProtocol
	}
}

// classifyTransport maps a transport error to an error kind.
func classifyTransport(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return KindTimeout
	}
	return KindUnavailable
}
