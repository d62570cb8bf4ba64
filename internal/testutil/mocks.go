package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/XiaoConstantine/promptlab/pkg/core"
	"github.com/XiaoConstantine/promptlab/pkg/errors"
)

// MockGenerator is a mock implementation of core.Generator.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, system, user string, options ...core.GenerateOption) (*core.Generation, error) {
	args := m.Called(ctx, system, user, options)
	if gen, ok := args.Get(0).(*core.Generation); ok {
		return gen, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGenerator) ProviderName() string {
	return "mock"
}

func (m *MockGenerator) ModelID() string {
	return "mock-model"
}

// StubGenerator returns a fixed response for every call, with an optional
// simulated latency. Useful for deterministic metric assertions.
type StubGenerator struct {
	Content string
	Tokens  int
	Latency time.Duration

	// FailFor marks system prompts whose calls always fail.
	FailFor map[string]bool

	calls int64
}

// CallCount reports how many Generate invocations happened, including
// failed ones. Safe to read after concurrent use.
func (s *StubGenerator) CallCount() int {
	return int(atomic.LoadInt64(&s.calls))
}

func (s *StubGenerator) Generate(ctx context.Context, system, user string, options ...core.GenerateOption) (*core.Generation, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "generation canceled")
		}
	}
	if s.FailFor[system] {
		return nil, errors.New(errors.GenerationFailed, "stubbed generation failure")
	}
	return &core.Generation{
		Content: s.Content,
		Usage:   &core.TokenInfo{TotalTokens: s.Tokens},
	}, nil
}

func (s *StubGenerator) ProviderName() string {
	return "stub"
}

func (s *StubGenerator) ModelID() string {
	return "stub-model"
}

// FailingGenerator fails every call.
type FailingGenerator struct{}

func (FailingGenerator) Generate(ctx context.Context, system, user string, options ...core.GenerateOption) (*core.Generation, error) {
	return nil, errors.New(errors.GenerationFailed, "generation service unavailable")
}

func (FailingGenerator) ProviderName() string {
	return "failing"
}

func (FailingGenerator) ModelID() string {
	return "failing-model"
}
