package contract

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfGitNotAvailable skips the test if git binary is not found in PATH
func skipIfGitNotAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git binary not found in PATH: %v", err)
	}
}

// initRepo creates a throwaway repository with a single commit.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=Ada", "GIT_AUTHOR_EMAIL=ada@example.com",
			"GIT_COMMITTER_NAME=Ada", "GIT_COMMITTER_EMAIL=ada@example.com",
			"GIT_AUTHOR_DATE=2025-01-02T10:00:00Z", "GIT_COMMITTER_DATE=2025-01-02T10:00:00Z",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestMockGitClient_Run(t *testing.T) {
	mockClient := new(MockGitClient)
	ctx := context.Background()
	expectedOutput := []byte("a1b2c3d commit message")
	expectedError := errors.New("mocked git error")

	mockClient.
		On("Run", ctx, "/path/to/repo", "log", "-1", "--oneline").
		Return(expectedOutput, expectedError).
		Once()

	actualOutput, actualError := mockClient.Run(ctx, "/path/to/repo", "log", "-1", "--oneline")
	assert.Equal(t, expectedOutput, actualOutput)
	assert.Equal(t, expectedError, actualError)
	mockClient.AssertExpectations(t)
}

func TestNewLocalGitClient(t *testing.T) {
	client := NewLocalGitClient()
	assert.NotNil(t, client, "NewLocalGitClient should return a non-nil client")
	assert.IsType(t, &LocalGitClient{}, client)
}

func TestLocalGitClient_Run(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient()
	ctx := context.Background()
	repo := initRepo(t)

	tests := []struct {
		name        string
		repoPath    string
		args        []string
		expectError bool
	}{
		{"invalid repo path", "/nonexistent/path", []string{"status"}, true},
		{"invalid git command", repo, []string{"invalid-command"}, true},
		{"valid command", repo, []string{"status", "--short"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(ctx, tt.repoPath, tt.args...)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalGitClient_GetActivityLog(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient()
	ctx := context.Background()
	repo := initRepo(t)

	heads, err := client.GetRepoHeads(ctx, repo)
	require.NoError(t, err)
	require.Len(t, heads, 1)

	out, err := client.GetActivityLog(ctx, repo, heads, nil)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, GitLogCommitPrefix+heads[0]+"|ada@example.com|2025-01-02T10:00:00+00:00", lines[0])

	out, err = client.GetActivityLog(ctx, repo, heads, heads)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(out)))

	unknown := strings.Repeat("ab", 20)
	out, err = client.GetActivityLog(ctx, repo, heads, []string{unknown})
	require.NoError(t, err)
	assert.Contains(t, string(out), heads[0])
}

func TestLocalGitClient_GetRepoHeads(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient()
	ctx := context.Background()
	repo := initRepo(t)

	out, err := exec.Command("git", "-C", repo, "branch", "feature").CombinedOutput()
	require.NoError(t, err, string(out))

	heads, err := client.GetRepoHeads(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, heads, 1, "branches on the same commit collapse to one head")

	_, err = client.GetRepoHeads(ctx, "/nonexistent/path")
	assert.Error(t, err)
}
