package support

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// StartServer launches the decode server as a real process and waits
// until it answers health checks.
func (testCtx *TestContext) StartServer(command string) error {
	if err := testCtx.parseServerCommand(command); err != nil {
		return err
	}

	parts := strings.Fields(testCtx.substituteCommandVariables(command))
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "bargo" {
		parts[0] = testCtx.binaryPath()
	}

	cmd := exec.Command(parts[0], parts[1:]...) //nolint:gosec // G204: Commands come from feature files
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerProcess = cmd.Process

	if err := testCtx.waitForServerReady(); err != nil {
		if stopErr := testCtx.StopServer(); stopErr != nil {
			return fmt.Errorf("server failed to start and also failed to stop: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// parseServerCommand extracts host and port settings from the command.
func (testCtx *TestContext) parseServerCommand(command string) error {
	parts := strings.Fields(testCtx.substituteCommandVariables(command))

	testCtx.ServerHost = "localhost"

	for i, part := range parts {
		switch part {
		case "--port", "-p":
			if i+1 < len(parts) {
				port, err := strconv.Atoi(parts[i+1])
				if err != nil {
					return fmt.Errorf("invalid port: %s", parts[i+1])
				}
				testCtx.ServerPort = port
			}
		case "--host", "-H":
			if i+1 < len(parts) {
				testCtx.ServerHost = parts[i+1]
			}
		}

		if strings.HasPrefix(part, "--port=") {
			port, err := strconv.Atoi(strings.TrimPrefix(part, "--port="))
			if err != nil {
				return fmt.Errorf("invalid port: %s", part)
			}
			testCtx.ServerPort = port
		}
		if strings.HasPrefix(part, "--host=") {
			testCtx.ServerHost = strings.TrimPrefix(part, "--host=")
		}
	}

	return nil
}

// findFreePort asks the kernel for an unused TCP port.
func findFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find free port: %w", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, fmt.Errorf("failed to release probe listener: %w", err)
	}
	return port, nil
}

// waitForServerReady polls the health endpoint until it answers.
func (testCtx *TestContext) waitForServerReady() error {
	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		if testCtx.isServerHealthy() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return errors.New("server did not become ready within timeout")
}

// isServerHealthy checks whether the health endpoint responds.
func (testCtx *TestContext) isServerHealthy() bool {
	client := &http.Client{Timeout: time.Second}
	url := fmt.Sprintf("http://%s:%d/health", testCtx.ServerHost, testCtx.ServerPort)

	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing response body: %v\n", err)
		}
	}()

	return resp.StatusCode == http.StatusOK
}

// waitForServerExit waits for the server process to terminate.
func (testCtx *TestContext) waitForServerExit(timeout time.Duration) error {
	if testCtx.ServerProcess == nil {
		return errors.New("no server process running")
	}

	done := make(chan error, 1)
	go func() {
		_, err := testCtx.ServerProcess.Wait()
		done <- err
	}()

	select {
	case err := <-done:
		testCtx.ServerProcess = nil
		return err
	case <-time.After(timeout):
		return errors.New("server did not exit within timeout")
	}
}

// GetServerURL returns the base URL of whichever server is running.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil && testCtx.HTTPTestServer.HTTP != nil {
		return testCtx.HTTPTestServer.HTTP.URL
	}
	return fmt.Sprintf("http://%s:%d", testCtx.ServerHost, testCtx.ServerPort)
}

// SendSignalToServer delivers a signal to the server process.
func (testCtx *TestContext) SendSignalToServer(signal os.Signal) error {
	if testCtx.ServerProcess == nil {
		return errors.New("no server process running")
	}
	return testCtx.ServerProcess.Signal(signal)
}

// sigterm is split out so server steps stay readable.
func (testCtx *TestContext) sendSIGTERMToServer() error {
	return testCtx.SendSignalToServer(syscall.SIGTERM)
}
