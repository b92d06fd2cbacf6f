package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// DecodeSocketRequest represents a decode request via WebSocket. Image
// and PDF payloads are base64-encoded by the JSON codec.
type DecodeSocketRequest struct {
	Type    string                 `json:"type"` // "image" or "pdf"
	Image   []byte                 `json:"image,omitempty"`
	PDF     []byte                 `json:"pdf,omitempty"`
	Pages   string                 `json:"pages,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// socketConnWriter is an interface for writing WebSocket messages.
type socketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// DecodeSocketResponse represents a decode response via WebSocket.
type DecodeSocketResponse struct {
	Type      string      `json:"type"`
	Status    string      `json:"status"` // "processing", "completed", "error"
	Progress  float64     `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType string      `json:"error_type,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// decodeWebSocketHandler handles WebSocket connections for real-time decoding.
func (s *Server) decodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleSocketConnection(conn)
}

// handleSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleSocketConnection(conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleSocketMessage(conn, data)
		}
	}
}

// handleSocketMessage processes a WebSocket message.
func (s *Server) handleSocketMessage(conn *websocket.Conn, data []byte) {
	var req DecodeSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	// Generate a request ID for tracking
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	// Send processing start message
	s.sendSocketResponse(conn, DecodeSocketResponse{
		Type:      "decode_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	switch req.Type {
	case "image":
		s.processSocketImage(conn, req, requestID)
	case "pdf":
		s.processSocketPDF(conn, req, requestID)
	default:
		s.sendSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processSocketImage processes an image decode request via WebSocket.
func (s *Server) processSocketImage(conn *websocket.Conn, req DecodeSocketRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendSocketError(conn, "invalid_request", "No image data provided")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		s.sendSocketError(conn, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	dec, cleanup, err := s.decoderFor(s.extractSocketOptions(req.Options))
	if err != nil {
		s.sendSocketError(conn, "invalid_request", fmt.Sprintf("Invalid decode options: %v", err))
		return
	}
	defer cleanup()

	// Send progress update
	s.sendSocketResponse(conn, DecodeSocketResponse{
		Type:      "decode_response",
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	start := time.Now()
	res, err := dec.DecodeImage(context.Background(), img)
	duration := time.Since(start)

	if err != nil {
		decodeRequestsTotal.WithLabelValues("websocket_image", "error").Inc()
		s.sendSocketError(conn, "processing_error", fmt.Sprintf("Decode failed: %v", err))
		return
	}

	decodeRequestsTotal.WithLabelValues("websocket_image", "success").Inc()
	decodeDuration.WithLabelValues("websocket_image").Observe(duration.Seconds())
	barcodesFound.WithLabelValues("websocket_image").Observe(float64(len(res.Barcodes)))
	variantsTried.WithLabelValues("websocket_image").Observe(float64(res.VariantsTried()))

	// Send completion response
	s.sendSocketResponse(conn, DecodeSocketResponse{
		Type:      "decode_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    res,
		RequestID: requestID,
	})
}

// processSocketPDF processes a PDF decode request via WebSocket.
func (s *Server) processSocketPDF(conn *websocket.Conn, req DecodeSocketRequest, requestID string) {
	if len(req.PDF) == 0 {
		s.sendSocketError(conn, "invalid_request", "No PDF data provided")
		return
	}

	// Stage the payload for the page extractor
	tempFile, err := os.CreateTemp("", "bargo_ws_*.pdf")
	if err != nil {
		s.sendSocketError(conn, "processing_error", fmt.Sprintf("Failed to create temporary file: %v", err))
		return
	}
	defer func() {
		_ = os.Remove(tempFile.Name())
	}()

	if _, err := tempFile.Write(req.PDF); err != nil {
		_ = tempFile.Close()
		s.sendSocketError(conn, "processing_error", fmt.Sprintf("Failed to write PDF data: %v", err))
		return
	}
	if err := tempFile.Close(); err != nil {
		s.sendSocketError(conn, "processing_error", fmt.Sprintf("Failed to write PDF data: %v", err))
		return
	}

	// Send progress update
	s.sendSocketResponse(conn, DecodeSocketResponse{
		Type:      "decode_response",
		Status:    "processing",
		Progress:  0.2,
		RequestID: requestID,
	})

	dec, cleanup, err := s.decoderFor(s.extractSocketOptions(req.Options))
	if err != nil {
		s.sendSocketError(conn, "invalid_request", fmt.Sprintf("Invalid decode options: %v", err))
		return
	}
	defer cleanup()

	start := time.Now()
	res, err := dec.DecodePDF(context.Background(), tempFile.Name(), req.Pages)
	duration := time.Since(start)

	if err != nil {
		decodeRequestsTotal.WithLabelValues("websocket_pdf", "error").Inc()
		s.sendSocketError(conn, "processing_error", fmt.Sprintf("PDF decode failed: %v", err))
		return
	}

	decodeRequestsTotal.WithLabelValues("websocket_pdf", "success").Inc()
	decodeDuration.WithLabelValues("websocket_pdf").Observe(duration.Seconds())
	barcodesFound.WithLabelValues("websocket_pdf").Observe(float64(res.TotalBarcodes()))
	variantsTried.WithLabelValues("websocket_pdf").Observe(float64(documentAttempts(res)))

	// Send completion response
	s.sendSocketResponse(conn, DecodeSocketResponse{
		Type:      "decode_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    res,
		RequestID: requestID,
	})
}

// extractSocketOptions extracts decode overrides from WebSocket options.
func (s *Server) extractSocketOptions(options map[string]interface{}) *RequestOptions {
	opts := &RequestOptions{}

	if options == nil {
		return opts
	}

	opts.Formats = stringOption(options, "formats")
	opts.Variants = stringOption(options, "variants")
	opts.TryHarder = flagOption(options, "try-harder")
	opts.Multi = flagOption(options, "multi")

	return opts
}

// stringOption reads a list-valued option given as a string or an array.
func stringOption(options map[string]interface{}, key string) string {
	switch val := options[key].(type) {
	case string:
		return val
	case []interface{}:
		var parts []string
		for _, v := range val {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// flagOption reads a boolean option given as a bool or a string.
func flagOption(options map[string]interface{}, key string) string {
	switch val := options[key].(type) {
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return val
	}
	return ""
}

// sendSocketResponse sends a response message over WebSocket.
func (s *Server) sendSocketResponse(conn socketConnWriter, response DecodeSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendSocketError sends an error message over WebSocket.
func (s *Server) sendSocketError(conn socketConnWriter, errorType, message string) {
	response := DecodeSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket error response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
