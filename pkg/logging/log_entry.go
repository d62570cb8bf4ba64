package logging

import "context"

// LogEntry represents a structured log record with fields particularly
// relevant to generation-service operations.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Generation-specific fields
	ModelID   string     // The generation model being used
	TokenInfo *TokenInfo // Token usage information
	Latency   int64      // Operation duration in milliseconds

	// General structured data
	Fields map[string]interface{}
}

// TokenInfo tracks token usage for cost and performance monitoring.
type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type contextKey string

const (
	modelIDKey   contextKey = "model_id"
	tokenInfoKey contextKey = "token_info"
)

// WithModelID attaches a model identifier to the context for log enrichment.
func WithModelID(ctx context.Context, modelID string) context.Context {
	return context.WithValue(ctx, modelIDKey, modelID)
}

// GetModelID retrieves a model identifier previously attached with WithModelID.
func GetModelID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(modelIDKey).(string)
	return id, ok
}

// WithTokenInfo attaches token usage to the context for log enrichment.
func WithTokenInfo(ctx context.Context, info *TokenInfo) context.Context {
	return context.WithValue(ctx, tokenInfoKey, info)
}

// GetTokenInfo retrieves token usage previously attached with WithTokenInfo.
func GetTokenInfo(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*TokenInfo)
	return info, ok
}
