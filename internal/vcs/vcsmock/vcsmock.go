package vcsmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stagegate/stagegate/internal/vcs"
)

// MockClient is a mock implementation of vcs.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Commit(ctx context.Context, dir, prefix, message string) error {
	args := m.Called(ctx, dir, prefix, message)
	return args.Error(0)
}

func (m *MockClient) CreateBranch(ctx context.Context, dir, name string) error {
	args := m.Called(ctx, dir, name)
	return args.Error(0)
}

func (m *MockClient) CurrentBranch(ctx context.Context, dir string) (string, error) {
	args := m.Called(ctx, dir)
	return args.String(0), args.Error(1)
}

func (m *MockClient) OpenPR(ctx context.Context, dir string, pr vcs.PR) (string, error) {
	args := m.Called(ctx, dir, pr)
	return args.String(0), args.Error(1)
}

func (m *MockClient) RemoveWorktree(ctx context.Context, dir string) error {
	args := m.Called(ctx, dir)
	return args.Error(0)
}
