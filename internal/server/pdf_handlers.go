package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhjs0000/QERC/internal/export"
	"github.com/dhjs0000/QERC/internal/pdf"
	"github.com/dhjs0000/QERC/internal/pipeline"
)

// scanPDFHandler searches every embedded image of an uploaded PDF (multipart
// field "pdf"). Optional form fields: pages, password.
func (s *Server) scanPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, name, cleanup, ok := s.parsePDFRequest(w, r)
	if !ok {
		scanRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}
	defer cleanup()

	format, err := requestFormat(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		scanRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}

	var creds *pdf.Credentials
	if pw := r.FormValue("password"); pw != "" {
		creds = &pdf.Credentials{UserPassword: pw, OwnerPassword: pw}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	scanner := &pdf.Scanner{Searcher: s.searcher, Credentials: creds, Logger: s.logger}
	doc, err := scanner.Scan(ctx, pipeline.NewAggregator(), path, r.FormValue("pages"))
	if doc == nil {
		scanRequestsTotal.WithLabelValues("pdf", "error").Inc()
		switch {
		case errors.Is(err, pdf.ErrPasswordRequired):
			s.writeErrorResponse(w, "PDF is password protected", http.StatusUnauthorized)
		default:
			s.writeErrorResponse(w, fmt.Sprintf("PDF processing failed: %v", err), http.StatusBadRequest)
		}
		return
	}

	results := make([]export.ImageResult, 0, len(doc.Images))
	for _, img := range doc.Images {
		s.observeReport("pdf", img.Report)
		results = append(results, export.FromReport(renameID(img.ID, name), img.Report))
	}
	s.writeResults(w, format, results)
}

// renameID swaps the temp file name in an image ID for the uploaded name.
func renameID(id, name string) string {
	if _, rest, ok := strings.Cut(id, "#"); ok {
		return name + "#" + rest
	}
	return id
}

// parsePDFRequest stores the uploaded PDF in a temp file. On failure the
// error response has already been written.
func (s *Server) parsePDFRequest(w http.ResponseWriter, r *http.Request) (string, string, func(), bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return "", "", nil, false
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return "", "", nil, false
	}
	defer func() { _ = file.Close() }()

	data, ok := s.readUpload(w, file, header)
	if !ok {
		return "", "", nil, false
	}

	dir, err := os.MkdirTemp("", "qerc-upload-*")
	if err != nil {
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return "", "", nil, false
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "upload.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return "", "", nil, false
	}

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		name = "upload.pdf"
	}
	return path, name, cleanup, true
}
