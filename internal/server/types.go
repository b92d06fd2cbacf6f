package server

import (
	"context"
	"image"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/bargo/internal/pdf"
	"github.com/MeKo-Tech/bargo/internal/pipeline"
)

// decoderInterface defines the methods the handlers need from the
// decode stack.
type decoderInterface interface {
	DecodeImage(ctx context.Context, img image.Image) (*pipeline.ScanResult, error)
	DecodePDF(ctx context.Context, filename, pageRange string) (*pdf.DocumentResult, error)
	Close() error
}

// decoder adapts a pipeline and its PDF processor to decoderInterface.
type decoder struct {
	pipe *pipeline.Pipeline
	proc *pdf.Processor
}

func newDecoder(cfg pipeline.Config, creds *pdf.PasswordCredentials) (*decoder, error) {
	pipe, err := pipeline.NewBuilder().WithConfig(cfg).Build()
	if err != nil {
		return nil, err
	}
	proc := pdf.NewProcessor(pipe)
	if creds != nil {
		proc.SetPasswordCredentials(creds)
	}
	return &decoder{pipe: pipe, proc: proc}, nil
}

func (d *decoder) DecodeImage(ctx context.Context, img image.Image) (*pipeline.ScanResult, error) {
	return d.pipe.DecodeImageContext(ctx, img)
}

func (d *decoder) DecodePDF(ctx context.Context, filename, pageRange string) (*pdf.DocumentResult, error) {
	return d.proc.DecodeFileContext(ctx, filename, pageRange)
}

func (d *decoder) Close() error {
	return d.proc.Close()
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	dec            decoderInterface
	rateLimiter    *RateLimiter
	baseConfig     pipeline.Config
	pdfCreds       *pdf.PasswordCredentials
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
	overlayColor   string
}

// RateLimitConfig holds per-client rate limiting settings. A limit of
// zero disables that check.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	PDFCredentials *pdf.PasswordCredentials
	OverlayEnabled bool
	OverlayColor   string
	RateLimit      RateLimitConfig
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type FormatInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "matrix" or "linear"
}

type FormatsResponse struct {
	Formats []FormatInfo `json:"formats"`
	Count   int          `json:"count"`
}

// DecodeResponse is the envelope for error replies. Successful decodes
// stream the scan result directly.
type DecodeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a new decode server instance.
func NewServer(config Config) (*Server, error) {
	dec, err := newDecoder(config.PipelineConfig, config.PDFCredentials)
	if err != nil {
		return nil, err
	}

	var limiter *RateLimiter
	if config.RateLimit.Enabled {
		limiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay,
			config.RateLimit.MaxDataPerDay,
		)
	}

	return &Server{
		dec:            dec,
		rateLimiter:    limiter,
		baseConfig:     config.PipelineConfig,
		pdfCreds:       config.PDFCredentials,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
		overlayColor:   config.OverlayColor,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.dec != nil {
		return s.dec.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/formats", s.corsMiddleware(s.formatsHandler))
	mux.HandleFunc("/decode/image", s.corsMiddleware(s.rateLimitMiddleware(s.decodeImageHandler)))
	mux.HandleFunc("/decode/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.decodePDFHandler)))
	mux.HandleFunc("/ws", s.decodeWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
