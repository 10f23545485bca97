package main

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/dhjs0000/QERC/internal/testutil"
)

// fixture is a named scene and the contents a search must report for it.
type fixture struct {
	Name     string
	Scene    testutil.Scene
	Expected []string
}

// ManifestEntry describes one generated file.
type ManifestEntry struct {
	File        string   `json:"file"`
	Fixture     string   `json:"fixture"`
	Degradation string   `json:"degradation,omitempty"`
	Expected    []string `json:"expected"`
}

type options struct {
	Degraded bool
	PDF      bool
}

func fixtures() []fixture {
	single := func(name string, sym testutil.Symbology, text string, module, height int) fixture {
		return fixture{
			Name: name,
			Scene: testutil.Scene{
				Width:  480,
				Height: 360,
				Placements: []testutil.Placement{
					{Symbology: sym, Text: text, Module: module, Height: height, At: image.Pt(60, 80)},
				},
			},
			Expected: []string{text},
		}
	}
	return []fixture{
		{Name: "qr_top_left", Scene: testutil.QRTopLeftScene(), Expected: []string{"HELLO"}},
		{Name: "two_code128", Scene: testutil.TwoCode128Scene(), Expected: []string{"LEFT-001", "RIGHT-002"}},
		single("qr_url", testutil.SymQR, "https://example.org/item/42", 5, 0),
		{Name: "datamatrix", Scene: testutil.DataMatrixScene(), Expected: []string{"DM-42"}},
		single("ean13", testutil.SymEAN13, "4006381333931", 3, 140),
		single("code39", testutil.SymCode39, "CODE39", 2, 120),
		single("code93", testutil.SymCode93, "CODE93", 2, 120),
		single("itf", testutil.SymITF, "12345670", 3, 120),
		{Name: "blank", Scene: testutil.Scene{Width: 320, Height: 240}, Expected: []string{}},
	}
}

// generate renders every fixture into dir/clean (and dir/degraded), writes
// manifest.json and, when asked, dir/fixtures.pdf.
func generate(dir string, opts options) ([]ManifestEntry, error) {
	cleanDir := filepath.Join(dir, "clean")
	degradedDir := filepath.Join(dir, "degraded")
	if err := testutil.EnsureDir(cleanDir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cleanDir, err)
	}
	if opts.Degraded {
		if err := testutil.EnsureDir(degradedDir); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", degradedDir, err)
		}
	}

	var (
		manifest   []ManifestEntry
		cleanFiles []string
	)
	for _, f := range fixtures() {
		img, err := f.Scene.Render()
		if err != nil {
			return nil, fmt.Errorf("failed to render fixture %s: %w", f.Name, err)
		}

		name := f.Name + ".png"
		if err := testutil.WritePNG(filepath.Join(cleanDir, name), img); err != nil {
			return nil, fmt.Errorf("failed to save fixture %s: %w", f.Name, err)
		}
		cleanFiles = append(cleanFiles, filepath.Join(cleanDir, name))
		manifest = append(manifest, ManifestEntry{File: "clean/" + name, Fixture: f.Name, Expected: f.Expected})
		slog.Debug("fixture written", "name", f.Name)

		if !opts.Degraded {
			continue
		}
		for _, d := range testutil.Degradations() {
			dname := f.Name + "_" + d.Name + ".png"
			if err := testutil.WritePNG(filepath.Join(degradedDir, dname), d.Apply(img)); err != nil {
				return nil, fmt.Errorf("failed to save fixture %s: %w", dname, err)
			}
			manifest = append(manifest, ManifestEntry{
				File: "degraded/" + dname, Fixture: f.Name, Degradation: d.Name, Expected: f.Expected,
			})
		}
	}

	if opts.PDF {
		pdfPath := filepath.Join(dir, "fixtures.pdf")
		_ = os.Remove(pdfPath)
		if err := api.ImportImagesFile(cleanFiles, pdfPath, nil, nil); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", pdfPath, err)
		}
		for i, f := range fixtures() {
			manifest = append(manifest, ManifestEntry{
				File: fmt.Sprintf("fixtures.pdf#page=%d&image=1", i+1), Fixture: f.Name, Expected: f.Expected,
			})
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifest, nil
}
