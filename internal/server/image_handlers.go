package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/MeKo-Tech/bargo/internal/barcode"
	"github.com/MeKo-Tech/bargo/internal/config"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// RequestOptions holds per-request decode overrides. Empty fields
// inherit the server's base configuration.
type RequestOptions struct {
	Formats   string // comma-separated symbology filter
	Variants  string // comma-separated variant subset, in decode order
	TryHarder string // "1" or "true" to enable, "0" or "false" to disable
	Multi     string // same convention as TryHarder
}

func (o *RequestOptions) empty() bool {
	return o == nil || (o.Formats == "" && o.Variants == "" && o.TryHarder == "" && o.Multi == "")
}

// decoderFor returns the decoder serving a request. Requests without
// overrides share the server's decoder; overrides get a fresh one whose
// cleanup must run after the response is written.
func (s *Server) decoderFor(opts *RequestOptions) (decoderInterface, func(), error) {
	if opts.empty() {
		return s.dec, func() {}, nil
	}

	cfg := s.baseConfig
	if opts.Variants != "" {
		cfg.Variants = splitList(opts.Variants)
	}
	if opts.Formats != "" {
		formats, err := barcode.ParseFormats([]string{opts.Formats})
		if err != nil {
			return nil, nil, err
		}
		cfg.Formats = formats
	}
	if opts.TryHarder != "" {
		cfg.TryHarder = parseBoolValue(opts.TryHarder)
	}
	if opts.Multi != "" {
		cfg.Multi = parseBoolValue(opts.Multi)
	}

	dec, err := newDecoder(cfg, s.pdfCreds)
	if err != nil {
		return nil, nil, err
	}
	return dec, func() { _ = dec.Close() }, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolValue(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}

// extractRequestOptions reads decode overrides from the form.
func extractRequestOptions(r *http.Request) *RequestOptions {
	return &RequestOptions{
		Formats:   r.FormValue("formats"),
		Variants:  r.FormValue("variants"),
		TryHarder: r.FormValue("try-harder"),
		Multi:     r.FormValue("multi"),
	}
}

// decodeImageHandler processes image decode requests.
func (s *Server) decodeImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse and validate request
	img, opts, err := s.parseImageRequest(w, r)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return // error already written
	}

	if s.dec == nil {
		s.writeErrorResponse(w, "Decode pipeline not initialized", http.StatusServiceUnavailable)
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}

	// Get decoder for this request
	dec, cleanup, err := s.decoderFor(opts)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid decode options: %v", err), http.StatusBadRequest)
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}
	defer cleanup()

	// Run the full variant pipeline with timing
	start := time.Now()
	res, err := dec.DecodeImage(r.Context(), img)
	duration := time.Since(start)

	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Decode failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Record successful metrics
	decodeRequestsTotal.WithLabelValues("image", "success").Inc()
	decodeDuration.WithLabelValues("image").Observe(duration.Seconds())
	barcodesFound.WithLabelValues("image").Observe(float64(len(res.Barcodes)))
	variantsTried.WithLabelValues("image").Observe(float64(res.VariantsTried()))

	// Format and send response
	s.writeImageResponse(w, r, img, res)
}

func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, *RequestOptions, error) {
	// Set content length limit
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	// Parse multipart form
	err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024)
	if err != nil {
		s.handleFormParseError(w, err)
		return nil, nil, err
	}

	// Get uploaded file
	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, nil, err
	}
	defer func() { _ = file.Close() }()

	// Validate file size
	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, nil, err
	}

	// Record upload size metric
	uploadSizeBytes.Observe(float64(header.Size))

	// Read file content
	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, nil, err
	}

	// Decode image
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, nil, err
	}

	return img, extractRequestOptions(r), nil
}

func (s *Server) writeImageResponse(
	w http.ResponseWriter,
	r *http.Request,
	img image.Image,
	res *pipeline.ScanResult,
) {
	// Determine output format: default json; allow 'format' in query or form
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}

	switch format {
	case "csv":
		s.writeCSVResponse(w, res)
	case formatText:
		s.writeTextResponse(w, res)
	case "overlay":
		s.handleOverlayOutput(w, r, img, res)
	default:
		// Check for overlay parameter
		if r.FormValue("overlay") == "1" {
			s.handleOverlayOutput(w, r, img, res)
		} else {
			s.writeJSONResponse(w, res)
		}
	}
}

func (s *Server) writeCSVResponse(w http.ResponseWriter, res *pipeline.ScanResult) {
	w.Header().Set("Content-Type", "text/csv")
	csvStr, err := pipeline.ToCSV(res)
	if err != nil {
		http.Error(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(csvStr))
}

func (s *Server) writeTextResponse(w http.ResponseWriter, res *pipeline.ScanResult) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	textStr, err := pipeline.ToText(res)
	if err != nil {
		http.Error(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(textStr))
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, res *pipeline.ScanResult) {
	w.Header().Set("Content-Type", "application/json")
	obj := struct {
		Scan *pipeline.ScanResult `json:"scan"`
	}{Scan: res}
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding scan response: %v\n", err)
	}
}

// handleOverlayOutput renders the annotated source image for a scan.
func (s *Server) handleOverlayOutput(
	w http.ResponseWriter,
	r *http.Request,
	img image.Image,
	res *pipeline.ScanResult,
) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	lineCol := config.ParseHexColor(r.FormValue("color"))
	if lineCol == nil {
		lineCol = config.ParseHexColor(s.overlayColor)
	}
	if lineCol == nil {
		lineCol = pipeline.DefaultLineColor
	}

	ov := pipeline.RenderOverlay(img, res, lineCol)
	if ov == nil {
		http.Error(w, "overlay failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, ov)
}
