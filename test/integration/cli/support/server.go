package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// lockedBuffer collects the output of a background process.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartServer runs "qerc serve" in the background on a free port and waits
// until /health answers. extra holds additional serve flags.
func (testCtx *TestContext) StartServer(extra string) error {
	if testCtx.ServerCmd != nil {
		return errors.New("server already running")
	}
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("failed to find a free port: %w", err)
	}

	args := []string{"serve", "--host", testCtx.ServerHost, "--port", fmt.Sprint(port)}
	args = append(args, strings.Fields(extra)...)

	cmd := exec.CommandContext(context.Background(), qercBinary(), args...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	out := &lockedBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	testCtx.ServerCmd = cmd
	testCtx.ServerPort = port
	testCtx.ServerOutput = out
	testCtx.ServerDone = done

	return testCtx.waitForServerReady()
}

// StopServerProcess kills the background server if it is still running.
func (testCtx *TestContext) StopServerProcess() error {
	cmd := testCtx.ServerCmd
	testCtx.ServerCmd = nil
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-testCtx.ServerDone:
		return nil
	default:
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill server process: %w", err)
	}
	<-testCtx.ServerDone
	return nil
}

func (testCtx *TestContext) waitForServerReady() error {
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-testCtx.ServerDone:
			testCtx.ServerCmd = nil
			return fmt.Errorf("server exited early: %v\nOutput: %s", err, testCtx.ServerOutput.String())
		default:
		}
		if testCtx.isServerHealthy() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not become ready\nOutput: %s", testCtx.ServerOutput.String())
}

func (testCtx *TestContext) isServerHealthy() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(testCtx.GetServerURL() + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// GetServerURL returns the base URL of whichever server is running.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil {
		return testCtx.HTTPTestServer.Server.URL
	}
	return fmt.Sprintf("http://%s:%d", testCtx.ServerHost, testCtx.ServerPort)
}

// SendSignalToServer delivers sig and waits for the process to exit.
func (testCtx *TestContext) SendSignalToServer(sig os.Signal, wait time.Duration) error {
	if testCtx.ServerCmd == nil || testCtx.ServerCmd.Process == nil {
		return errors.New("no server process running")
	}
	if err := testCtx.ServerCmd.Process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal server: %w", err)
	}
	select {
	case err := <-testCtx.ServerDone:
		testCtx.ServerCmd = nil
		if err != nil {
			return fmt.Errorf("server exited with error: %w\nOutput: %s", err, testCtx.ServerOutput.String())
		}
		return nil
	case <-time.After(wait):
		return fmt.Errorf("server did not exit within %s", wait)
	}
}

func signalByName(name string) (os.Signal, error) {
	switch strings.ToUpper(name) {
	case "SIGINT", "INT":
		return os.Interrupt, nil
	case "SIGTERM", "TERM":
		return syscall.SIGTERM, nil
	default:
		return nil, fmt.Errorf("unsupported signal %s", name)
	}
}
