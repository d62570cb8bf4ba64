package llms

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/XiaoConstantine/promptlab/pkg/core"
)

// NewGenerator creates a generation-service client for the named provider.
func NewGenerator(provider, apiKey, modelID string) (core.Generator, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicGenerator(apiKey, anthropic.Model(modelID))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
