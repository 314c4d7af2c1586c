package narrative

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/credit-cli/pkg/anthropic"
	"github.com/sells-group/credit-cli/pkg/perplexity"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockPerplexity struct {
	mock.Mock
}

func (m *mockPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}
