package trackermock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stagegate/stagegate/internal/tracker"
)

// MockClient is a mock implementation of tracker.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) AssignedIssues(ctx context.Context) ([]tracker.Issue, error) {
	args := m.Called(ctx)
	if is := args.Get(0); is != nil {
		return is.([]tracker.Issue), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) Issue(ctx context.Context, key string) (*tracker.Issue, error) {
	args := m.Called(ctx, key)
	if i := args.Get(0); i != nil {
		return i.(*tracker.Issue), args.Error(1)
	}
	return nil, args.Error(1)
}
