// Package model defines the narrow contract to the external language-model
// capability: text generation and embedding. The engine never assumes a
// concrete provider; anything that satisfies Client can be plugged in,
// including test fakes.
package model

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable signals that the capability failed or timed out. Callers
// retry with backoff at the boundary and then degrade rather than failing
// the whole pipeline.
var ErrUnavailable = errors.New("model unavailable")

// Request is a generation request.
type Request struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Context     []string `json:"context,omitempty"` // retrieved passages, prepended to the prompt
	Temperature float32  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// Response is a generation response.
type Response struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Client is the pluggable capability contract.
type Client interface {
	// Generate produces text for the request.
	Generate(ctx context.Context, req Request) (*Response, error)
	// Embed returns one fixed-size vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures client-side guardrails shared by implementations.
type Options struct {
	Timeout     time.Duration // per-call deadline
	RatePerSec  float64       // token bucket refill rate, 0 disables limiting
	Burst       int
	MaxAttempts int // retry budget inside the resilient wrapper
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:     60 * time.Second,
		RatePerSec:  4,
		Burst:       8,
		MaxAttempts: 3,
	}
}
