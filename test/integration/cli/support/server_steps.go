package support

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) theScanServerIsRunning() error {
	return testCtx.startTestHTTPServer(defaultTestServerConfig())
}

func (testCtx *TestContext) theScanServerIsRunningWithOverlaysDisabled() error {
	cfg := defaultTestServerConfig()
	cfg.OverlayEnabled = false
	return testCtx.startTestHTTPServer(cfg)
}

func (testCtx *TestContext) theScanServerIsRunningWithALimitOf(perMinute int) error {
	cfg := defaultTestServerConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMinute = perMinute
	return testCtx.startTestHTTPServer(cfg)
}

func (testCtx *TestContext) theScanServerIsRunningWithUploadLimit(mb int) error {
	cfg := defaultTestServerConfig()
	cfg.MaxUploadMB = int64(mb)
	return testCtx.startTestHTTPServer(cfg)
}

func (testCtx *TestContext) iStartTheServerWith(flags string) error {
	return testCtx.StartServer(flags)
}

func (testCtx *TestContext) iGET(endpoint string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(testCtx.GetServerURL() + endpoint)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", endpoint, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(endpoint string) error {
	req, err := http.NewRequest(http.MethodOptions, testCtx.GetServerURL()+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Origin", "http://example.org")
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("OPTIONS %s failed: %w", endpoint, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iPOSTTheImageTo(name, endpoint string) error {
	return testCtx.uploadFile(endpoint, "image", name, nil)
}

func (testCtx *TestContext) iPOSTTheImageToTimes(name, endpoint string, times int) error {
	for range times {
		if err := testCtx.uploadFile(endpoint, "image", name, nil); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) iPOSTTheImagesTo(list, endpoint string) error {
	var names []string
	for _, n := range strings.Split(list, ",") {
		names = append(names, strings.TrimSpace(n))
	}
	return testCtx.uploadFiles(endpoint, "images", names, nil)
}

func (testCtx *TestContext) theBatchSummaryShouldReport(successful, failed int) error {
	var resp struct {
		Summary struct {
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("batch response is not JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	if resp.Summary.Successful != successful || resp.Summary.Failed != failed {
		return fmt.Errorf("summary is %d successful, %d failed; want %d, %d",
			resp.Summary.Successful, resp.Summary.Failed, successful, failed)
	}
	return nil
}

func (testCtx *TestContext) iPOSTThePDFTo(name, endpoint string) error {
	return testCtx.uploadFile(endpoint, "pdf", name, nil)
}

func (testCtx *TestContext) iPOSTThePDFToWithPages(name, endpoint, pages string) error {
	return testCtx.uploadFile(endpoint, "pdf", name, map[string]string{"pages": pages})
}

func (testCtx *TestContext) iScanOverTheWebSocket(name string) error {
	return testCtx.streamScan(name)
}

func (testCtx *TestContext) theResponseStatusShouldBe(expectedStatus int) error {
	if testCtx.LastHTTPStatusCode != expectedStatus {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expectedStatus, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldContain(header, value string) error {
	got := testCtx.LastHTTPHeaders[strings.ToLower(header)]
	if !strings.Contains(got, value) {
		return fmt.Errorf("header %s is %q, want it to contain %q", header, got, value)
	}
	return nil
}

// theResponseShouldReportTheBarcode checks a JSON scan response.
func (testCtx *TestContext) theResponseShouldReportTheBarcode(content string) error {
	results, err := jsonResults(testCtx.LastHTTPResponse)
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, b := range r.Barcodes {
			if b.Content == content {
				return nil
			}
		}
	}
	return fmt.Errorf("barcode %q not in response %s", content, testCtx.LastHTTPResponse)
}

func (testCtx *TestContext) progressFramesShouldReach100() error {
	last := -1.0
	seen := 0
	for _, f := range testCtx.LastFrames {
		if f["type"] != "progress" {
			continue
		}
		p, ok := f["progress"].(map[string]any)
		if !ok {
			return fmt.Errorf("progress frame without payload: %v", f)
		}
		pct, _ := p["percent"].(float64)
		if pct < last {
			return fmt.Errorf("progress went backwards: %.1f after %.1f", pct, last)
		}
		last = pct
		seen++
	}
	if seen == 0 {
		return fmt.Errorf("no progress frames in %d frames", len(testCtx.LastFrames))
	}
	if last != 100 {
		return fmt.Errorf("progress ended at %.1f", last)
	}
	return nil
}

func (testCtx *TestContext) theLastFrameShouldBeAResultContaining(content string) error {
	f, err := testCtx.lastFrame()
	if err != nil {
		return err
	}
	if f["type"] != "result" {
		return fmt.Errorf("last frame is %v", f)
	}
	data, err := json.Marshal(f["result"])
	if err != nil {
		return err
	}
	results, err := jsonResults(string(data))
	if err != nil {
		return err
	}
	for _, b := range results[0].Barcodes {
		if b.Content == content {
			return nil
		}
	}
	return fmt.Errorf("result frame does not contain %q: %s", content, data)
}

func (testCtx *TestContext) theLastFrameShouldBeAnErrorOfType(errorType string) error {
	f, err := testCtx.lastFrame()
	if err != nil {
		return err
	}
	if f["type"] != "error" || f["error_type"] != errorType {
		return fmt.Errorf("last frame is %v, want error %s", f, errorType)
	}
	return nil
}

func (testCtx *TestContext) iSendSignalToTheServer(signalName string) error {
	sig, err := signalByName(signalName)
	if err != nil {
		return err
	}
	return testCtx.SendSignalToServer(sig, 15*time.Second)
}

func (testCtx *TestContext) theServerShouldStopListening() error {
	if testCtx.isServerHealthy() {
		return fmt.Errorf("server on port %d still answers", testCtx.ServerPort)
	}
	return nil
}

// RegisterServerSteps registers HTTP, WebSocket and serve lifecycle steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^the scan server is running with overlays disabled$`, testCtx.theScanServerIsRunningWithOverlaysDisabled)
	sc.Step(`^the scan server is running with a limit of (\d+) requests per minute$`,
		testCtx.theScanServerIsRunningWithALimitOf)
	sc.Step(`^the scan server is running with an upload limit of (\d+) MB$`,
		testCtx.theScanServerIsRunningWithUploadLimit)
	sc.Step(`^I start the server with "([^"]*)"$`, testCtx.iStartTheServerWith)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I POST the image "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheImageTo)
	sc.Step(`^I POST the image "([^"]*)" to "([^"]*)" (\d+) times$`, testCtx.iPOSTTheImageToTimes)
	sc.Step(`^I POST the images "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheImagesTo)
	sc.Step(`^I POST the PDF "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTThePDFTo)
	sc.Step(`^I POST the PDF "([^"]*)" to "([^"]*)" with pages "([^"]*)"$`, testCtx.iPOSTThePDFToWithPages)
	sc.Step(`^I scan "([^"]*)" over the WebSocket$`, testCtx.iScanOverTheWebSocket)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, testCtx.theResponseHeaderShouldContain)
	sc.Step(`^the response should report the barcode "([^"]*)"$`, testCtx.theResponseShouldReportTheBarcode)
	sc.Step(`^the batch summary should report (\d+) successful and (\d+) failed$`, testCtx.theBatchSummaryShouldReport)

	sc.Step(`^progress frames should reach 100 percent$`, testCtx.progressFramesShouldReach100)
	sc.Step(`^the last frame should be a result containing "([^"]*)"$`, testCtx.theLastFrameShouldBeAResultContaining)
	sc.Step(`^the last frame should be an error of type "([^"]*)"$`, testCtx.theLastFrameShouldBeAnErrorOfType)

	sc.Step(`^I send "([^"]*)" to the server$`, testCtx.iSendSignalToTheServer)
	sc.Step(`^the server should stop listening$`, testCtx.theServerShouldStopListening)
}
