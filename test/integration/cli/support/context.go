package support

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	EnvVars    []string

	// Background server started from the binary
	ServerCmd    *exec.Cmd
	ServerPort   int
	ServerHost   string
	ServerOutput *lockedBuffer
	ServerDone   chan error

	// In-process server
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string

	// WebSocket frames of the last streamed scan
	LastFrames []map[string]any
}

// NewTestContext creates a new test context. Commands run inside a fresh
// temporary directory, so relative fixture paths in feature files never
// touch the repository.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "qerc-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir:      tempDir,
		TempDir:         tempDir,
		EnvVars:         []string{},
		ServerHost:      "127.0.0.1",
		LastHTTPHeaders: map[string]string{},
	}, nil
}

// Cleanup stops servers and removes the scenario's temporary directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// StopServer stops whichever server the scenario started.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	if testCtx.ServerCmd != nil {
		return testCtx.StopServerProcess()
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// path resolves a feature-file path against the scenario directory.
func (testCtx *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// ensureParent creates the parent directory of a scenario file.
func (testCtx *TestContext) ensureParent(name string) (string, error) {
	p := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	return p, nil
}
