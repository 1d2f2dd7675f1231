package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// GitLogCommitPrefix starts every commit header line in GetActivityLog output.
// The header is "--<sha>|<author email>|<author date>".
const GitLogCommitPrefix = "--"

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout output.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s", repoPath, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetActivityLog implements the GitClient interface. Commits are listed oldest first.
func (c *LocalGitClient) GetActivityLog(ctx context.Context, repoPath string, heads, exclude []string) ([]byte, error) {
	args := []string{
		"log",
		"--reverse",
		"--numstat",
		"--ignore-missing",
		"--pretty=format:" + GitLogCommitPrefix + "%H|%ae|%aI",
	}
	args = append(args, heads...)
	if len(exclude) > 0 {
		args = append(args, "--not")
		args = append(args, exclude...)
	}
	return c.Run(ctx, repoPath, append(args, "--")...)
}

// GetRepoHeads implements the GitClient interface.
func (c *LocalGitClient) GetRepoHeads(ctx context.Context, repoPath string) ([]string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "--all")
	if err != nil {
		return nil, err
	}
	heads := strings.Fields(string(out))
	slices.Sort(heads)
	return slices.Compact(heads), nil
}
