package agentmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stagegate/stagegate/internal/agent"
)

// MockRunner is a mock implementation of agent.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, req agent.Request) (*agent.Result, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*agent.Result), args.Error(1)
	}
	return nil, args.Error(1)
}
