package llms

import (
	"context"
	"errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/XiaoConstantine/promptlab/pkg/core"
	errs "github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
)

// AnthropicGenerator implements the core.Generator interface for Anthropic's models.
type AnthropicGenerator struct {
	client  *anthropic.Client
	modelID anthropic.Model
}

// NewAnthropicGenerator creates a new AnthropicGenerator instance. When apiKey
// is empty the ANTHROPIC_API_KEY environment variable is consulted.
func NewAnthropicGenerator(apiKey string, model anthropic.Model) (*AnthropicGenerator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errs.New(errs.InvalidInput, "API key is required")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicGenerator{
		client:  &client,
		modelID: model,
	}, nil
}

// Generate sends the system instruction and user message to the Messages API.
func (a *AnthropicGenerator) Generate(ctx context.Context, system, user string, options ...core.GenerateOption) (*core.Generation, error) {
	logger := logging.GetLogger()
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	params := anthropic.MessageNewParams{
		Model: a.modelID,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(user),
			),
		},
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			logger.Error(ctx, "Anthropic API error: status code %d", apiErr.StatusCode)
		}
		return nil, errs.WithFields(
			errs.Wrap(err, errs.GenerationFailed, "failed to generate response"),
			errs.Fields{
				"model":      string(a.modelID),
				"max_tokens": opts.MaxTokens,
			})
	}

	if message == nil {
		return nil, errs.New(errs.GenerationFailed, "Received nil response from Anthropic API")
	}

	if len(message.Content) == 0 {
		return nil, errs.New(errs.GenerationFailed, "Received empty content from Anthropic API")
	}

	// Extract text from response using union type methods
	var responseText string
	if block := message.Content[0]; block.Type == "text" {
		responseText = block.Text
	}

	usage := &core.TokenInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}

	logger.Debug(ctx, "Anthropic response: %d prompt tokens, %d completion tokens", message.Usage.InputTokens, message.Usage.OutputTokens)

	return &core.Generation{Content: responseText, Usage: usage}, nil
}

func (a *AnthropicGenerator) ProviderName() string {
	return "anthropic"
}

func (a *AnthropicGenerator) ModelID() string {
	return string(a.modelID)
}
