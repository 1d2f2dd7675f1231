package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock type for the GitClient type.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	var mockArgs []any
	mockArgs = append(mockArgs, ctx, repoPath)
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetActivityLog implements the GitClient interface.
func (m *MockGitClient) GetActivityLog(ctx context.Context, repoPath string, heads, exclude []string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, heads, exclude)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetRepoHeads implements the GitClient interface.
func (m *MockGitClient) GetRepoHeads(ctx context.Context, repoPath string) ([]string, error) {
	ret := m.Called(ctx, repoPath)
	heads, _ := ret.Get(0).([]string)
	return heads, ret.Error(1)
}
