// Package pdf extracts embedded page images from PDF documents so they can be
// fed to the barcode search.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dhjs0000/QERC/internal/utils"
)

// PageImage is one embedded image found on a page.
type PageImage struct {
	Page  int
	Index int
	Name  string
	Image image.Image
}

// ID identifies the image within its document, e.g. "scan.pdf#page=2&image=1".
func (p PageImage) ID(filename string) string {
	return fmt.Sprintf("%s#page=%d&image=%d", filepath.Base(filename), p.Page, p.Index)
}

// ExtractImages extracts all embedded images from a PDF file grouped by page.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	return ExtractImagesWithCredentials(filename, pageRange, nil)
}

// ExtractImagesWithCredentials is ExtractImages for password protected files.
func ExtractImagesWithCredentials(filename, pageRange string, creds *Credentials) (map[int][]image.Image, error) {
	pages, err := ExtractPageImages(filename, pageRange, creds)
	if err != nil {
		return nil, err
	}
	result := make(map[int][]image.Image)
	for _, p := range pages {
		result[p.Page] = append(result[p.Page], p.Image)
	}
	return result, nil
}

// ExtractPageImages extracts embedded images in page order. Images on the
// same page keep the order pdfcpu wrote them in.
func ExtractPageImages(filename, pageRange string, creds *Credentials) ([]PageImage, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "qerc-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, creds.configuration()); err != nil {
		if IsPasswordError(err) {
			return nil, fmt.Errorf("%w: %w", ErrPasswordRequired, err)
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	result, err := collectExtractedImages(tempDir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// PageCount returns the number of pages in the document.
func PageCount(filename string, creds *Credentials) (int, error) {
	n, err := api.PageCountFile(filename)
	if err == nil || creds == nil {
		return n, err
	}
	f, err := os.Open(filename) //nolint:gosec // G304: user supplied document path
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return api.PageCount(f, creds.configuration())
}

// collectExtractedImages reads every decodable file in dir. pdfcpu names
// extracted images <base>_<page>_<name>.<ext>.
func collectExtractedImages(dir, base string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []PageImage
	for _, name := range names {
		pageNum, err := parsePageFromFilename(name, base)
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, name))
		if err != nil || img == nil {
			continue
		}
		out = append(out, PageImage{Page: pageNum, Name: name, Image: img})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	counts := make(map[int]int)
	for i := range out {
		counts[out[i].Page]++
		out[i].Index = counts[out[i].Page]
	}
	return out, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
func parsePageFromFilename(filename, base string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	var rest string
	switch {
	case base != "" && strings.HasPrefix(stem, base+"_"):
		rest = strings.TrimPrefix(stem, base+"_")
	case strings.HasPrefix(stem, "page_"):
		rest = strings.TrimPrefix(stem, "page_")
	default:
		return 0, errors.New("not a page file")
	}

	digits, _, _ := strings.Cut(rest, "_")
	pageNum, err := strconv.Atoi(digits)
	if err != nil || pageNum < 1 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for _, p := range tokenPages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}

// Credentials contains the passwords for an encrypted PDF file.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// ErrPasswordRequired is returned when a document cannot be opened with the
// given credentials.
var ErrPasswordRequired = errors.New("pdf is encrypted: password required")

func (c *Credentials) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if c != nil {
		conf.UserPW = c.UserPassword
		conf.OwnerPW = c.OwnerPassword
	}
	return conf
}

// IsPasswordError reports whether err relates to encryption or passwords.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPasswordRequired) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
