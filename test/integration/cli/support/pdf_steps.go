package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dhjs0000/QERC/internal/testutil"
)

// aPDFWithPagesOfQRCodes writes a PDF with one image per page; page N holds
// the QR code "PAGE-N".
func (testCtx *TestContext) aPDFWithPagesOfQRCodes(name string, pages int) error {
	out, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp(testCtx.TempDir, "pages-*")
	if err != nil {
		return err
	}
	var files []string
	for i := 1; i <= pages; i++ {
		img, err := qrScene(fmt.Sprintf("PAGE-%d", i)).Render()
		if err != nil {
			return err
		}
		p := filepath.Join(dir, fmt.Sprintf("page_%d.png", i))
		if err := testutil.WritePNG(p, img); err != nil {
			return err
		}
		files = append(files, p)
	}

	if err := api.ImportImagesFile(files, out, nil, nil); err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) aFileThatIsNotAPDF(name string) error {
	p, err := testCtx.ensureParent(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte("this is not a pdf"), 0o600)
}

// theJSONImageIDsShouldBe checks the page/image ids in output order.
func (testCtx *TestContext) theJSONImageIDsShouldBe(ids string) error {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return err
	}
	want := strings.Split(ids, ",")
	if len(results) != len(want) {
		return fmt.Errorf("got %d image records, want %d\nOutput: %s", len(results), len(want), testCtx.LastOutput)
	}
	for i, r := range results {
		if r.Image != strings.TrimSpace(want[i]) {
			return fmt.Errorf("record %d is %q, want %q", i, r.Image, want[i])
		}
	}
	return nil
}

func (testCtx *TestContext) pageShouldReport(page int, content string) error {
	results, err := jsonResults(testCtx.LastOutput)
	if err != nil {
		return err
	}
	marker := fmt.Sprintf("#page=%d&", page)
	for _, r := range results {
		if !strings.Contains(r.Image, marker) {
			continue
		}
		for _, b := range r.Barcodes {
			if b.Content == content {
				return nil
			}
		}
	}
	return fmt.Errorf("page %d did not report %q\nOutput: %s", page, content, testCtx.LastOutput)
}

// RegisterPDFSteps registers PDF fixture and result steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with (\d+) pages? of QR codes$`, testCtx.aPDFWithPagesOfQRCodes)
	sc.Step(`^a file "([^"]*)" that is not a PDF$`, testCtx.aFileThatIsNotAPDF)
	sc.Step(`^the JSON image ids should be "([^"]*)"$`, testCtx.theJSONImageIDsShouldBe)
	sc.Step(`^page (\d+) should report "([^"]*)"$`, testCtx.pageShouldReport)
}
