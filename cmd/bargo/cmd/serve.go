package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/bargo/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the decode API",
	Long: `Start an HTTP server that provides REST API endpoints for barcode
decoding.

The server provides the following endpoints:
  POST /decode/image - Decode uploaded images
  POST /decode/pdf   - Decode uploaded PDF documents
  GET  /health       - Health check endpoint
  GET  /formats      - List supported symbologies
  GET  /metrics      - Prometheus metrics
  GET  /ws           - Websocket decode endpoint

Examples:
  bargo serve
  bargo serve --port 8080
  bargo serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()

		// Extract server configuration with CLI flag overrides
		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		overlayEnable := cfg.Server.OverlayEnabled
		if cmd.Flags().Changed("overlay-enable") {
			overlayEnable, _ = cmd.Flags().GetBool("overlay-enable")
		}

		lineColor := cfg.Output.LineColor
		if cmd.Flags().Changed("line-color") {
			lineColor, _ = cmd.Flags().GetString("line-color")
		}

		// Rate limiting: a per-minute limit of zero disables it entirely
		rateLimitPerMin := cfg.Server.RateLimitPerMin
		if cmd.Flags().Changed("rate-limit-per-min") {
			rateLimitPerMin, _ = cmd.Flags().GetInt("rate-limit-per-min")
		}

		requestsPerHour, _ := cmd.Flags().GetInt("requests-per-hour")
		maxRequestsPerDay, _ := cmd.Flags().GetInt("max-requests-per-day")
		maxDataPerDay, _ := cmd.Flags().GetInt64("max-data-per-day")

		// Decode pipeline overrides for the server's base pipeline
		if cmd.Flags().Changed("format") {
			cfg.Decode.Formats, _ = cmd.Flags().GetStringSlice("format")
		}
		if cmd.Flags().Changed("variants") {
			cfg.Decode.Variants, _ = cmd.Flags().GetStringSlice("variants")
		}
		if cmd.Flags().Changed("try-harder") {
			cfg.Decode.TryHarder, _ = cmd.Flags().GetBool("try-harder")
		}
		if cmd.Flags().Changed("multi") {
			cfg.Decode.Multi, _ = cmd.Flags().GetBool("multi")
		}

		// Validate port number
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Build the base pipeline config from centralized configuration
		pCfg, err := cfg.ToPipelineConfig()
		if err != nil {
			return err
		}

		serverConfig := server.Config{
			Host:           host,
			Port:           port,
			CORSOrigin:     corsOrigin,
			MaxUploadMB:    int64(maxUploadSize),
			TimeoutSec:     timeout,
			PipelineConfig: pCfg,
			PDFCredentials: cfg.PDFCredentials(),
			OverlayEnabled: overlayEnable,
			OverlayColor:   lineColor,
			RateLimit: server.RateLimitConfig{
				Enabled:           rateLimitPerMin > 0,
				RequestsPerMinute: rateLimitPerMin,
				RequestsPerHour:   requestsPerHour,
				MaxRequestsPerDay: maxRequestsPerDay,
				MaxDataPerDay:     maxDataPerDay,
			},
		}

		// Initialize server
		decodeServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = decodeServer.Close() }()

		mux := http.NewServeMux()
		decodeServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting decode server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		// Shutdown HTTP server first
		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		// Clean up decode server resources
		slog.Info("Cleaning up server resources")
		if err := decodeServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		} else {
			slog.Info("Server cleanup completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Decode pipeline customization flags
	serveCmd.Flags().StringSliceP("format", "f", []string{"any"},
		"default symbology filter for requests without one")
	serveCmd.Flags().StringSlice("variants", nil,
		"default preprocessing variants for requests without their own")
	serveCmd.Flags().Bool("try-harder", false, "spend more time per variant by default")
	serveCmd.Flags().Bool("multi", false, "collect all symbols per image by default")
	// Overlay flags
	serveCmd.Flags().Bool("overlay-enable", true, "enable annotated overlay image responses")
	serveCmd.Flags().String("line-color", "", "overlay stroke color as #RRGGBB (default #00FF00)")
	// Rate limiting flags
	serveCmd.Flags().Int("rate-limit-per-min", 60, "maximum requests per minute per client (0 disables)")
	serveCmd.Flags().Int("requests-per-hour", 0, "maximum requests per hour per client (0 = unlimited)")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int64("max-data-per-day", 0, "maximum data processed per day per client in bytes (0 = unlimited)")
}

// GetServeCommand returns the serve command for testing purposes.
func GetServeCommand() *cobra.Command {
	return serveCmd
}
