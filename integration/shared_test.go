//go:build basic || database || integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// sharedBinaryPath holds the path to a teampulse binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}
	os.Exit(code)
}

// getBinary returns the path to the teampulse binary, building it once if needed.
func getBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "teampulse-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binPath := filepath.Join(tempDir, "teampulse")
		buildCmd := exec.Command("go", "build", "-o", binPath, ".")
		buildCmd.Dir = ".." // project root
		if out, err := buildCmd.CombinedOutput(); err != nil {
			panic(fmt.Sprintf("failed to build teampulse: %v\n%s", err, out))
		}
		sharedBinaryPath = binPath
	})

	return sharedBinaryPath
}

// runCommand runs teampulse with args inside dir and returns stdout.
func runCommand(t *testing.T, dir string, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinary(), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), stdout.String(), stderr.String())
	}
	return stdout.String(), err
}

// mustRun is runCommand that fails the test on error.
func mustRun(t *testing.T, dir string, env []string, args ...string) string {
	t.Helper()
	out, err := runCommand(t, dir, env, args...)
	require.NoError(t, err)
	return out
}

// writeFixture writes a seed file and a Jira feed under dir and returns the feed directory.
func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	seed := `projects:
  - id: capstone-a
    name: Capstone A
    created_at: 2024-01-01T00:00:00Z
    jira: CAP
    members:
      - student_id: s1
        name: Ada
        role: leader
        joined_at: 2024-01-01T00:00:00Z
        jira: ada
      - student_id: s2
        name: Bo
        joined_at: 2024-01-01T00:00:00Z
        jira: bo
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seed), 0o644))

	feedDir := filepath.Join(dir, "feeds")
	require.NoError(t, os.MkdirAll(filepath.Join(feedDir, "jira"), 0o755))
	feed := `{"id":"CAP-1-c","kind":"issue_created","actor":"ada","occurred_at":"2024-02-01T10:00:00Z","issue_key":"CAP-1","issue_status":"To Do"}
{"id":"CAP-1-d","kind":"issue_transition","actor":"ada","occurred_at":"2024-02-02T10:00:00Z","issue_key":"CAP-1","issue_status":"Done","story_points":3}
{"id":"CAP-2-c","kind":"issue_created","actor":"bo","occurred_at":"2024-02-03T10:00:00Z","issue_key":"CAP-2","issue_status":"In Progress"}
`
	require.NoError(t, os.WriteFile(filepath.Join(feedDir, "jira", "CAP.ndjson"), []byte(feed), 0o644))
	return feedDir
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
