package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/bargo/internal/pdf"
)

// decodePDFHandler processes PDF decode requests.
func (s *Server) decodePDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse the request and stage the upload to a temp file
	path, pageRange, opts, cleanup, err := s.parsePDFRequest(w, r)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return // error already written
	}
	defer cleanup()

	if s.dec == nil {
		s.writeErrorResponse(w, "Decode pipeline not initialized", http.StatusServiceUnavailable)
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}

	// Get decoder for this request
	dec, decCleanup, err := s.decoderFor(opts)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid decode options: %v", err), http.StatusBadRequest)
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}
	defer decCleanup()

	// Run the pipeline over every page image with timing
	start := time.Now()
	res, err := dec.DecodePDF(r.Context(), path, pageRange)
	duration := time.Since(start)

	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("PDF decode failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Record successful metrics
	decodeRequestsTotal.WithLabelValues("pdf", "success").Inc()
	decodeDuration.WithLabelValues("pdf").Observe(duration.Seconds())
	barcodesFound.WithLabelValues("pdf").Observe(float64(res.TotalBarcodes()))
	variantsTried.WithLabelValues("pdf").Observe(float64(documentAttempts(res)))

	// Format and send response
	s.writePDFResponse(w, r, res)
}

// parsePDFRequest validates the upload and writes it to a temporary
// file the extractor can open. The cleanup removes the temp file.
func (s *Server) parsePDFRequest(
	w http.ResponseWriter,
	r *http.Request,
) (string, string, *RequestOptions, func(), error) {
	// Set content length limit
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	// Parse multipart form
	err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024)
	if err != nil {
		s.handleFormParseError(w, err)
		return "", "", nil, nil, err
	}

	// Get uploaded file
	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return "", "", nil, nil, err
	}
	defer func() { _ = file.Close() }()

	// Validate file size
	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return "", "", nil, nil, err
	}

	// Record upload size metric
	uploadSizeBytes.Observe(float64(header.Size))

	// Stage the upload for the page extractor
	tempFile, err := os.CreateTemp("", "bargo_pdf_*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "Failed to create temporary file", http.StatusInternalServerError)
		return "", "", nil, nil, err
	}
	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	if _, err := io.Copy(tempFile, file); err != nil {
		_ = tempFile.Close()
		cleanup()
		s.writeErrorResponse(w, "Failed to read PDF data", http.StatusInternalServerError)
		return "", "", nil, nil, err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		s.writeErrorResponse(w, "Failed to write PDF data", http.StatusInternalServerError)
		return "", "", nil, nil, err
	}

	pageRange := r.FormValue("pages")
	return tempFile.Name(), pageRange, extractRequestOptions(r), cleanup, nil
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	// Distinguish body-too-large from generic parse error
	if strings.Contains(strings.ToLower(err.Error()), "body too large") ||
		strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
	} else {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
	}
}

func (s *Server) writePDFResponse(w http.ResponseWriter, r *http.Request, res *pdf.DocumentResult) {
	// Determine output format: default json; allow 'format' in query or form
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}

	if format == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.writePDFTextResponse(w, res)
		return
	}

	// default: json
	w.Header().Set("Content-Type", "application/json")
	obj := struct {
		Scan *pdf.DocumentResult `json:"scan"`
	}{Scan: res}
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding PDF scan response: %v\n", err)
	}
}

// writePDFTextResponse writes a plain text representation of PDF scan results.
func (s *Server) writePDFTextResponse(w http.ResponseWriter, result *pdf.DocumentResult) {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("File: %s\n", result.Filename))
	output.WriteString(fmt.Sprintf("Total Pages: %d\n", result.TotalPages))
	output.WriteString(fmt.Sprintf("Processing Time: %dms\n\n", result.Processing.TotalTimeMs))

	for _, page := range result.Pages {
		output.WriteString(fmt.Sprintf("Page %d (%dx%d):\n", page.PageNumber, page.Width, page.Height))

		for _, img := range page.Images {
			output.WriteString(fmt.Sprintf("  Image %d (%dx%d): %d barcode(s), %d attempt(s)\n",
				img.ImageIndex, img.Width, img.Height, len(img.Barcodes), img.Attempts))

			for i, bc := range img.Barcodes {
				output.WriteString(fmt.Sprintf("    #%d %s box=(%d,%d %dx%d) variant=%s payload='%s'\n",
					i+1, bc.Format,
					bc.Box.X, bc.Box.Y, bc.Box.W, bc.Box.H,
					bc.Variant, bc.Payload))
			}
		}
		output.WriteString("\n")
	}

	if _, err := w.Write([]byte(output.String())); err != nil {
		// Log error, but can't send another response
		fmt.Fprintf(os.Stderr, "Error writing response: %v\n", err)
	}
}

// documentAttempts sums the engine attempts recorded across all page images.
func documentAttempts(res *pdf.DocumentResult) int {
	total := 0
	for _, page := range res.Pages {
		for _, img := range page.Images {
			total += img.Attempts
		}
	}
	return total
}
