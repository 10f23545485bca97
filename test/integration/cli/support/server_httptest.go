package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhjs0000/QERC/internal/pipeline"
	"github.com/dhjs0000/QERC/internal/server"
)

// HTTPTestServerWrapper wraps an in-process scan server for integration
// tests that need to inspect responses closely.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// defaultTestServerConfig mirrors the serve defaults with a real decoder.
func defaultTestServerConfig() server.Config {
	return server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     60,
		Search:         pipeline.DefaultConfig(),
		OverlayEnabled: true,
		Version:        "integration",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (testCtx *TestContext) startTestHTTPServer(cfg server.Config) error {
	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer == nil {
		return
	}
	testCtx.HTTPTestServer.Server.Close()
	_ = testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
}

// recordResponse stores status, headers and body of resp.
func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[strings.ToLower(k)] = resp.Header.Get(k)
	}
	return nil
}

// uploadFile posts a scenario file as multipart field to endpoint.
func (testCtx *TestContext) uploadFile(endpoint, field, name string, extra map[string]string) error {
	return testCtx.uploadFiles(endpoint, field, []string{name}, extra)
}

// uploadFiles posts every named file under the same multipart field.
func (testCtx *TestContext) uploadFiles(endpoint, field string, names []string, extra map[string]string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		data, err := os.ReadFile(testCtx.path(name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		part, err := mw.CreateFormFile(field, filepath.Base(name))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.GetServerURL()+endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := &http.Client{Timeout: commandTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	return testCtx.recordResponse(resp)
}

// streamScan sends name as a binary WebSocket frame and collects frames up
// to the result or error frame.
func (testCtx *TestContext) streamScan(name string) error {
	data, err := os.ReadFile(testCtx.path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	url := "ws" + strings.TrimPrefix(testCtx.GetServerURL(), "http") + "/ws/scan"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}

	testCtx.LastFrames = nil
	deadline := time.Now().Add(commandTimeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		testCtx.LastFrames = append(testCtx.LastFrames, frame)
		switch frame["type"] {
		case server.FrameResult, server.FrameError:
			return nil
		}
	}
}

func (testCtx *TestContext) lastFrame() (map[string]any, error) {
	if len(testCtx.LastFrames) == 0 {
		return nil, errors.New("no WebSocket frames received")
	}
	return testCtx.LastFrames[len(testCtx.LastFrames)-1], nil
}
