package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

const httpRequestTimeout = 30 * time.Second

// theDecodeAPIIsRunning starts the in-process decode API.
func (testCtx *TestContext) theDecodeAPIIsRunning() error {
	return testCtx.createTestHTTPServer()
}

// makeHTTPRequest performs a request against the running server and
// records status, body and headers for later assertions.
func (testCtx *TestContext) makeHTTPRequest(method, path string, body io.Reader, contentType string) error {
	url := testCtx.GetServerURL() + path

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: httpRequestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing response body: %v\n", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = make(map[string]string)
	for key := range resp.Header {
		testCtx.LastHTTPHeaders[key] = resp.Header.Get(key)
	}

	return nil
}

// iGET performs a GET request against the server.
func (testCtx *TestContext) iGET(path string) error {
	return testCtx.makeHTTPRequest(http.MethodGet, path, nil, "")
}

// uploadFile POSTs a file from the scenario temp dir as a multipart
// form, with optional extra form fields.
func (testCtx *TestContext) uploadFile(filename, path, field string, fields map[string]string) error {
	filePath := testCtx.tempPath(filename)

	file, err := os.Open(filePath) //nolint:gosec // G304: Paths come from feature files
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing upload file: %v\n", err)
		}
	}()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	return testCtx.makeHTTPRequest(http.MethodPost, path, &buf, writer.FormDataContentType())
}

// iPOSTTheImageTo uploads an image with default options.
func (testCtx *TestContext) iPOSTTheImageTo(filename, path string) error {
	return testCtx.uploadFile(filename, path, "image", nil)
}

// iPOSTTheImageToWithFormat uploads an image requesting a specific
// response format.
func (testCtx *TestContext) iPOSTTheImageToWithFormat(filename, path, format string) error {
	return testCtx.uploadFile(filename, path, "image", map[string]string{"format": format})
}

// iPOSTTheImageToRequestingAnOverlay uploads an image and asks for the
// annotated PNG instead of structured output.
func (testCtx *TestContext) iPOSTTheImageToRequestingAnOverlay(filename, path string) error {
	return testCtx.uploadFile(filename, path, "image", map[string]string{"overlay": "1"})
}

// iPOSTTheFileTo uploads an arbitrary temp file in the image field.
func (testCtx *TestContext) iPOSTTheFileTo(filename, path string) error {
	return testCtx.uploadFile(filename, path, "image", nil)
}

// iPOSTToWithoutAFile sends a multipart form with no file part.
func (testCtx *TestContext) iPOSTToWithoutAFile(path string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("format", "json"); err != nil {
		return fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	return testCtx.makeHTTPRequest(http.MethodPost, path, &buf, writer.FormDataContentType())
}

// theResponseStatusShouldBe checks the HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nResponse: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldBeValidJSON checks the body parses as JSON.
func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	var parsed interface{}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &parsed); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldContain checks the body for a substring.
func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, expected) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseContentTypeShouldStartWith checks the Content-Type header
// by prefix so charset suffixes do not matter.
func (testCtx *TestContext) theResponseContentTypeShouldStartWith(expected string) error {
	actual := testCtx.LastHTTPHeaders["Content-Type"]
	if !strings.HasPrefix(actual, expected) {
		return fmt.Errorf("expected Content-Type starting with %q, got %q", expected, actual)
	}
	return nil
}

// scanEnvelope mirrors the JSON shape of a successful decode response.
type scanEnvelope struct {
	Scan struct {
		Barcodes []struct {
			Format  string `json:"format"`
			Payload string `json:"payload"`
		} `json:"barcodes"`
	} `json:"scan"`
}

// theScanResponseShouldIncludeABarcode checks that the decode response
// carries at least one barcode of the given symbology.
func (testCtx *TestContext) theScanResponseShouldIncludeABarcode(format string) error {
	var envelope scanEnvelope
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &envelope); err != nil {
		return fmt.Errorf("failed to parse scan response: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}

	if len(envelope.Scan.Barcodes) == 0 {
		return fmt.Errorf("scan response has no barcodes\nResponse: %s", testCtx.LastHTTPResponse)
	}
	for _, b := range envelope.Scan.Barcodes {
		if b.Format == format {
			return nil
		}
	}
	return fmt.Errorf("no %s barcode in scan response\nResponse: %s", format, testCtx.LastHTTPResponse)
}

// theScanResponseShouldIncludeThePayload checks a decoded payload.
func (testCtx *TestContext) theScanResponseShouldIncludeThePayload(payload string) error {
	var envelope scanEnvelope
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &envelope); err != nil {
		return fmt.Errorf("failed to parse scan response: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}

	for _, b := range envelope.Scan.Barcodes {
		if b.Payload == payload {
			return nil
		}
	}
	return fmt.Errorf("payload %q not in scan response\nResponse: %s", payload, testCtx.LastHTTPResponse)
}

// theResponseShouldListTheSupportedFormats validates the formats
// endpoint response shape.
func (testCtx *TestContext) theResponseShouldListTheSupportedFormats() error {
	var parsed struct {
		Formats []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"formats"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &parsed); err != nil {
		return fmt.Errorf("failed to parse formats response: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}

	if parsed.Count == 0 || len(parsed.Formats) != parsed.Count {
		return fmt.Errorf("formats count mismatch: count=%d, formats=%d", parsed.Count, len(parsed.Formats))
	}

	names := make(map[string]bool)
	for _, f := range parsed.Formats {
		names[f.Name] = true
		if f.Kind != "matrix" && f.Kind != "linear" {
			return fmt.Errorf("unexpected format kind %q for %s", f.Kind, f.Name)
		}
	}
	for _, want := range []string{"qr", "code128", "ean13"} {
		if !names[want] {
			return fmt.Errorf("formats response is missing %q\nResponse: %s", want, testCtx.LastHTTPResponse)
		}
	}
	return nil
}

// theResponseShouldReportAHealthyStatus validates the health endpoint.
func (testCtx *TestContext) theResponseShouldReportAHealthyStatus() error {
	var parsed struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &parsed); err != nil {
		return fmt.Errorf("failed to parse health response: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}
	if parsed.Status != "healthy" {
		return fmt.Errorf("expected status healthy, got %q", parsed.Status)
	}
	return nil
}

// theServerIsStartedOnAFreePort launches the real server binary on a
// port picked by the kernel.
func (testCtx *TestContext) theServerIsStartedOnAFreePort() error {
	port, err := findFreePort()
	if err != nil {
		return err
	}
	return testCtx.StartServer(fmt.Sprintf("bargo serve --port %d", port))
}

// theHealthEndpointShouldReport polls the running server's health
// endpoint and checks the body.
func (testCtx *TestContext) theHealthEndpointShouldReport(expected string) error {
	if err := testCtx.iGET("/health"); err != nil {
		return err
	}
	return testCtx.theResponseShouldContain(expected)
}

// iSendSIGTERMToTheServer delivers SIGTERM to the server process.
func (testCtx *TestContext) iSendSIGTERMToTheServer() error {
	return testCtx.sendSIGTERMToServer()
}

// theServerShouldShutDownWithinSeconds waits for a clean exit.
func (testCtx *TestContext) theServerShouldShutDownWithinSeconds(seconds int) error {
	if err := testCtx.waitForServerExit(time.Duration(seconds) * time.Second); err != nil {
		return fmt.Errorf("server did not shut down cleanly: %w", err)
	}
	return nil
}

// RegisterServerSteps wires the server step definitions.
func RegisterServerSteps(sc *godog.ScenarioContext, testCtx *TestContext) {
	sc.Step(`^the decode API is running$`, testCtx.theDecodeAPIIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the image "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheImageTo)
	sc.Step(`^I POST the image "([^"]*)" to "([^"]*)" with format "([^"]*)"$`, testCtx.iPOSTTheImageToWithFormat)
	sc.Step(`^I POST the image "([^"]*)" to "([^"]*)" requesting an overlay$`, testCtx.iPOSTTheImageToRequestingAnOverlay)
	sc.Step(`^I POST the file "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheFileTo)
	sc.Step(`^I POST to "([^"]*)" without a file$`, testCtx.iPOSTToWithoutAFile)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response content type should start with "([^"]*)"$`, testCtx.theResponseContentTypeShouldStartWith)
	sc.Step(`^the scan response should include a "([^"]*)" barcode$`, testCtx.theScanResponseShouldIncludeABarcode)
	sc.Step(`^the scan response should include the payload "([^"]*)"$`, testCtx.theScanResponseShouldIncludeThePayload)
	sc.Step(`^the response should list the supported formats$`, testCtx.theResponseShouldListTheSupportedFormats)
	sc.Step(`^the response should report a healthy status$`, testCtx.theResponseShouldReportAHealthyStatus)

	sc.Step(`^the server is started on a free port$`, testCtx.theServerIsStartedOnAFreePort)
	sc.Step(`^the health endpoint should report "([^"]*)"$`, testCtx.theHealthEndpointShouldReport)
	sc.Step(`^I send SIGTERM to the server$`, testCtx.iSendSIGTERMToTheServer)
	sc.Step(`^the server should shut down within (\d+) seconds$`, testCtx.theServerShouldShutDownWithinSeconds)
}
