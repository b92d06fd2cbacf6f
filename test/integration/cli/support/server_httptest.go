package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"

	"github.com/MeKo-Tech/bargo/internal/pipeline"
	"github.com/MeKo-Tech/bargo/internal/server"
)

// HTTPTestServerWrapper bundles an in-process HTTP server with the
// decode server backing it.
type HTTPTestServerWrapper struct {
	HTTP   *httptest.Server
	Decode *server.Server
}

// createTestHTTPServer starts an in-process decode API. The handlers
// are the real ones, only the listener is replaced by httptest.
func (testCtx *TestContext) createTestHTTPServer() error {
	if testCtx.HTTPTestServer != nil {
		return nil
	}

	srv, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		PipelineConfig: pipeline.DefaultConfig(),
		OverlayEnabled: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decode server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ts := httptest.NewServer(mux)

	parsed, err := url.Parse(ts.URL)
	if err != nil {
		ts.Close()
		if closeErr := srv.Close(); closeErr != nil {
			return fmt.Errorf("failed to parse test server URL: %w; close error: %w", err, closeErr)
		}
		return fmt.Errorf("failed to parse test server URL: %w", err)
	}

	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		ts.Close()
		if closeErr := srv.Close(); closeErr != nil {
			return fmt.Errorf("failed to parse test server port: %w; close error: %w", err, closeErr)
		}
		return fmt.Errorf("failed to parse test server port: %w", err)
	}

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{HTTP: ts, Decode: srv}
	testCtx.ServerHost = parsed.Hostname()
	testCtx.ServerPort = port

	return nil
}

// stopTestHTTPServer shuts down the in-process decode API.
func (testCtx *TestContext) stopTestHTTPServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}

	wrapper := testCtx.HTTPTestServer
	testCtx.HTTPTestServer = nil

	if wrapper.HTTP != nil {
		wrapper.HTTP.Close()
	}
	if wrapper.Decode != nil {
		if err := wrapper.Decode.Close(); err != nil {
			return fmt.Errorf("failed to close decode server: %w", err)
		}
	}

	return nil
}
