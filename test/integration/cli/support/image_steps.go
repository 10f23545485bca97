package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"

	"github.com/cucumber/godog"

	"github.com/dhjs0000/QERC/internal/testutil"
)

// imageResult mirrors the JSON record the CLI prints per image.
type imageResult struct {
	Image    string `json:"image"`
	Barcodes []struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"barcodes"`
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error"`
}

// jsonResults parses stdout, which is one object for a single image and an
// array otherwise.
func jsonResults(raw string) ([]imageResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("no JSON output")
	}
	if raw[0] == '[' {
		var out []imageResult
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("failed to parse JSON array: %w", err)
		}
		return out, nil
	}
	var one imageResult
	if err := json.Unmarshal([]byte(raw), &one); err != nil {
		return nil, fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return []imageResult{one}, nil
}

func (testCtx *TestContext) writeScene(name string, scene testutil.Scene) error {
	p, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}
	img, err := scene.Render()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return testutil.WritePNG(p, img)
}

func qrScene(text string) testutil.Scene {
	return testutil.Scene{
		Width:  480,
		Height: 360,
		Placements: []testutil.Placement{
			{Symbology: testutil.SymQR, Text: text, Module: 6, At: image.Pt(40, 40)},
		},
	}
}

func (testCtx *TestContext) anImageWithAQRCode(name, text string) error {
	return testCtx.writeScene(name, qrScene(text))
}

func (testCtx *TestContext) anImageWithTwoCode128Codes(name, left, right string) error {
	scene := testutil.TwoCode128Scene()
	scene.Placements[0].Text = left
	scene.Placements[1].Text = right
	return testCtx.writeScene(name, scene)
}

func (testCtx *TestContext) aLowContrastImageWithAQRCode(name, text string) error {
	p, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}
	img, err := qrScene(text).Render()
	if err != nil {
		return err
	}
	return testutil.WritePNG(p, testutil.LowContrast(img, -0.6))
}

func (testCtx *TestContext) aBlankImage(name string) error {
	p, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}
	return testutil.WritePNG(p, testutil.Blank(320, 240))
}

// aDirectoryWithQRImages writes count images named code_N.png, each holding
// the QR code "<dir>-N".
func (testCtx *TestContext) aDirectoryWithQRImages(dir string, count int) error {
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("%s/code_%d.png", dir, i)
		if err := testCtx.anImageWithAQRCode(name, fmt.Sprintf("%s-%d", dir, i)); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theJSONShouldListImages(n int) error {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return err
	}
	if len(results) != n {
		return fmt.Errorf("JSON lists %d images, want %d\nOutput: %s", len(results), n, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) allContents() ([]string, error) {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return nil, err
	}
	var contents []string
	for _, r := range results {
		for _, b := range r.Barcodes {
			contents = append(contents, b.Content)
		}
	}
	return contents, nil
}

func (testCtx *TestContext) theJSONShouldReportBarcodes(n int) error {
	contents, err := testCtx.allContents()
	if err != nil {
		return err
	}
	if len(contents) != n {
		return fmt.Errorf("JSON reports %d barcodes %v, want %d", len(contents), contents, n)
	}
	return nil
}

func (testCtx *TestContext) theJSONShouldReportTheBarcode(content string) error {
	contents, err := testCtx.allContents()
	if err != nil {
		return err
	}
	if !slices.Contains(contents, content) {
		return fmt.Errorf("barcode %q not reported, got %v", content, contents)
	}
	return nil
}

func (testCtx *TestContext) theJSONShouldReportTheBarcodeOfType(content, typ string) error {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, b := range r.Barcodes {
			if b.Content == content {
				if b.Type != typ {
					return fmt.Errorf("barcode %q has type %s, want %s", content, b.Type, typ)
				}
				return nil
			}
		}
	}
	return fmt.Errorf("barcode %q not reported", content)
}

func (testCtx *TestContext) theJSONMessageForShouldBe(image, message string) error {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return err
	}
	for _, r := range results {
		if strings.HasSuffix(r.Image, image) {
			if r.Message != message {
				return fmt.Errorf("message for %s is %q, want %q", image, r.Message, message)
			}
			return nil
		}
	}
	return fmt.Errorf("no result for %s in %s", image, testCtx.LastOutput)
}

func (testCtx *TestContext) theJSONShouldRecordAnErrorFor(image string) error {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return err
	}
	for _, r := range results {
		if strings.HasSuffix(r.Image, image) {
			if r.Error == "" {
				return fmt.Errorf("result for %s carries no error", image)
			}
			return nil
		}
	}
	return fmt.Errorf("no result for %s", image)
}

// RegisterImageSteps registers fixture and per-image result steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an image "([^"]*)" with a QR code containing "([^"]*)"$`, testCtx.anImageWithAQRCode)
	sc.Step(`^an image "([^"]*)" with Code 128 codes "([^"]*)" and "([^"]*)"$`, testCtx.anImageWithTwoCode128Codes)
	sc.Step(`^a low contrast image "([^"]*)" with a QR code containing "([^"]*)"$`,
		testCtx.aLowContrastImageWithAQRCode)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a directory "([^"]*)" with (\d+) QR images$`, testCtx.aDirectoryWithQRImages)

	sc.Step(`^the JSON should list (\d+) images?$`, testCtx.theJSONShouldListImages)
	sc.Step(`^the JSON should report (\d+) barcodes?$`, testCtx.theJSONShouldReportBarcodes)
	sc.Step(`^the JSON should report the barcode "([^"]*)"$`, testCtx.theJSONShouldReportTheBarcode)
	sc.Step(`^the JSON should report the barcode "([^"]*)" as "([^"]*)"$`, testCtx.theJSONShouldReportTheBarcodeOfType)
	sc.Step(`^the JSON message for "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONMessageForShouldBe)
	sc.Step(`^the JSON should record an error for "([^"]*)"$`, testCtx.theJSONShouldRecordAnErrorFor)
}
