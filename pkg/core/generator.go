package core

import (
	"context"
)

// TokenInfo tracks token usage reported by a generation backend.
type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generation is the result of a single text-generation call.
type Generation struct {
	Content  string
	Usage    *TokenInfo
	Metadata map[string]interface{}
}

// Tokens returns the total token count of the generation, or zero when the
// backend reported no usage.
func (g *Generation) Tokens() int {
	if g == nil || g.Usage == nil {
		return 0
	}
	return g.Usage.TotalTokens
}

// Generator represents an interface for text-generation services.
//
// Implementations are treated as nondeterministic and possibly slow. A
// failed call is reported once, not retried; retry policy belongs to the
// caller or the underlying client.
type Generator interface {
	// Generate produces a completion for the user message under the given
	// system instruction.
	Generate(ctx context.Context, system, user string, options ...GenerateOption) (*Generation, error)

	ProviderName() string
	ModelID() string
}

// GenerateOption represents an option for text generation.
type GenerateOption func(*GenerateOptions)

// GenerateOptions holds configuration for text generation.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// NewGenerateOptions creates a new GenerateOptions with default values.
func NewGenerateOptions() *GenerateOptions {
	return &GenerateOptions{
		MaxTokens:   1024, // Default max tokens
		Temperature: 0.7,  // Default temperature
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}
