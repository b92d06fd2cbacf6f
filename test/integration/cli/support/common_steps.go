package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

const commandTimeout = 30 * time.Second

// substituteCommandVariables replaces scenario placeholders in command
// strings. {tmp} expands to the scenario temp directory and {port} to
// the port of the running server.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	command = strings.ReplaceAll(command, "{port}", strconv.Itoa(testCtx.ServerPort))
	return command
}

// iRunCommand executes a CLI command and captures its output streams
// and exit code. A bare "bargo" resolves to the binary TestMain built.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "bargo" {
		parts[0] = testCtx.binaryPath()
	}

	// Remember where --output-file points so file steps can find it.
	for i, part := range parts {
		if part == "--output-file" && i+1 < len(parts) {
			testCtx.LastOutputFile = parts[i+1]
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // G204: Commands come from feature files
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	testCtx.LastStartTime = time.Now()
	err := cmd.Run()
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			testCtx.LastExitCode = exitErr.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	}

	return nil
}

// theCommandShouldSucceed verifies the last command exited zero.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d\nstdout: %s\nstderr: %s",
			testCtx.LastExitCode, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the last command exited nonzero.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nstdout: %s", testCtx.LastOutput)
	}
	return nil
}

// theExitCodeShouldBe verifies the exact exit code.
func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("expected exit code %d, got %d\nstderr: %s",
			code, testCtx.LastExitCode, testCtx.LastStderr)
	}
	return nil
}

// combinedOutput merges both captured streams for loose text checks.
func (testCtx *TestContext) combinedOutput() string {
	return testCtx.LastOutput + "\n" + testCtx.LastStderr
}

// theOutputShouldContain verifies expected text appears on either stream.
func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	expected = testCtx.substituteCommandVariables(expected)
	if !strings.Contains(testCtx.combinedOutput(), expected) {
		return fmt.Errorf("output does not contain %q\nstdout: %s\nstderr: %s",
			expected, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldNotContain verifies text is absent from both streams.
func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	unexpected = testCtx.substituteCommandVariables(unexpected)
	if strings.Contains(testCtx.combinedOutput(), unexpected) {
		return fmt.Errorf("output contains %q but should not\nstdout: %s",
			unexpected, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention verifies the failure text, case-insensitively,
// across stderr, stdout and the process error.
func (testCtx *TestContext) theErrorShouldMention(expected string) error {
	expected = strings.ToLower(expected)
	haystack := strings.ToLower(testCtx.combinedOutput())
	if testCtx.LastError != nil {
		haystack += "\n" + strings.ToLower(testCtx.LastError.Error())
	}
	if strings.Contains(haystack, expected) {
		return nil
	}
	return fmt.Errorf("error output does not mention %q\nstdout: %s\nstderr: %s",
		expected, testCtx.LastOutput, testCtx.LastStderr)
}

// extractJSONFromOutput returns the JSON document in stdout. Decode
// output starts at the first brace or bracket; anything before it is
// progress text.
func (testCtx *TestContext) extractJSONFromOutput() (string, error) {
	output := strings.TrimSpace(testCtx.LastOutput)

	objIdx := strings.Index(output, "{")
	arrIdx := strings.Index(output, "[")

	start := -1
	switch {
	case objIdx >= 0 && (arrIdx < 0 || objIdx < arrIdx):
		start = objIdx
	case arrIdx >= 0:
		start = arrIdx
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON found in output: %s", output)
	}

	return output[start:], nil
}

// theOutputShouldBeValidJSON verifies stdout carries a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	jsonData, err := testCtx.extractJSONFromOutput()
	if err != nil {
		return err
	}

	var js json.RawMessage
	if err := json.Unmarshal([]byte(jsonData), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\noutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONShouldContain verifies a dotted field path exists in the JSON
// output. When the document is an array the first element is checked.
func (testCtx *TestContext) theJSONShouldContain(fieldPath string) error {
	jsonData, err := testCtx.extractJSONFromOutput()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(jsonData), &doc); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	current := doc
	for _, field := range strings.Split(fieldPath, ".") {
		if arr, ok := current.([]interface{}); ok {
			if len(arr) == 0 {
				return fmt.Errorf("JSON array is empty while looking for %q", fieldPath)
			}
			current = arr[0]
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return fmt.Errorf("JSON path %q: %q is not an object", fieldPath, field)
		}
		next, exists := obj[field]
		if !exists {
			return fmt.Errorf("JSON does not contain field %q (path %q)", field, fieldPath)
		}
		current = next
	}
	return nil
}

// extractCSVFromOutput returns the CSV block in stdout, starting at the
// decode header line.
func (testCtx *TestContext) extractCSVFromOutput() (string, error) {
	lines := strings.Split(testCtx.LastOutput, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "source,format,payload") {
			return strings.Join(lines[i:], "\n"), nil
		}
	}
	return "", fmt.Errorf("no CSV header found in output: %s", testCtx.LastOutput)
}

// theOutputShouldBeValidCSV verifies stdout carries parseable CSV rows.
func (testCtx *TestContext) theOutputShouldBeValidCSV() error {
	csvData, err := testCtx.extractCSVFromOutput()
	if err != nil {
		return err
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(csvData)))
	if _, err := reader.ReadAll(); err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	return nil
}

// theCSVHeaderShouldListTheDecodeColumns verifies the export header.
func (testCtx *TestContext) theCSVHeaderShouldListTheDecodeColumns() error {
	csvData, err := testCtx.extractCSVFromOutput()
	if err != nil {
		return err
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(csvData)))
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return errors.New("CSV has no records")
	}

	expected := []string{"source", "format", "payload", "variant", "engine", "x", "y", "w", "h"}
	header := records[0]
	if len(header) != len(expected) {
		return fmt.Errorf("expected %d CSV columns, got %d: %v", len(expected), len(header), header)
	}
	for i, col := range expected {
		if header[i] != col {
			return fmt.Errorf("CSV column %d is %q, expected %q", i, header[i], col)
		}
	}
	return nil
}

// theFileShouldExist verifies a file exists, resolving placeholders and
// relative paths against the working directory.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.resolvePath(filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	return nil
}

// theFileShouldContain verifies a file holds expected text.
func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	path := testCtx.resolvePath(filename)
	content, err := os.ReadFile(path) //nolint:gosec // G304: Test file verification with controlled path
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if !strings.Contains(string(content), expected) {
		return fmt.Errorf("file %s does not contain %q", path, expected)
	}
	return nil
}

// theResultsShouldBeWrittenTo verifies the output file exists with data.
func (testCtx *TestContext) theResultsShouldBeWrittenTo(filename string) error {
	testCtx.LastOutputFile = filename
	path := testCtx.resolvePath(filename)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("results file does not exist: %s", path)
	}
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("results file is empty: %s", path)
	}
	testCtx.TrackFile(path)
	return nil
}

func (testCtx *TestContext) resolvePath(filename string) string {
	filename = testCtx.substituteCommandVariables(filename)
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(testCtx.WorkingDir, filename)
}

// theEnvironmentVariableIsSetTo records an environment variable for the
// commands of this scenario.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
	return nil
}

// theOutputShouldContainUsageInformation verifies help output shape.
func (testCtx *TestContext) theOutputShouldContainUsageInformation() error {
	return testCtx.theOutputShouldContain("Usage:")
}

// theOutputShouldListAvailableFlags verifies the common flags appear.
func (testCtx *TestContext) theOutputShouldListAvailableFlags() error {
	commonFlags := []string{"--help", "--verbose"}
	for _, flag := range commonFlags {
		if !strings.Contains(testCtx.combinedOutput(), flag) {
			return fmt.Errorf("flag not listed: %s", flag)
		}
	}
	return nil
}

// theOutputShouldListAvailableSubcommands verifies every subcommand is
// documented.
func (testCtx *TestContext) theOutputShouldListAvailableSubcommands() error {
	subcommands := []string{"decode", "batch", "pdf", "serve", "test"}
	for _, cmd := range subcommands {
		if !strings.Contains(testCtx.combinedOutput(), cmd) {
			return fmt.Errorf("subcommand not listed: %s", cmd)
		}
	}
	return nil
}

// buildInformationShouldBeIncluded verifies the version report fields.
func (testCtx *TestContext) buildInformationShouldBeIncluded() error {
	buildInfo := []string{"bargo version", "Commit:", "Built:"}
	for _, info := range buildInfo {
		if !strings.Contains(testCtx.combinedOutput(), info) {
			return fmt.Errorf("build information missing %q in output: %s", info, testCtx.LastOutput)
		}
	}
	return nil
}

// registerCommandSteps registers command execution and exit steps.
func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
}

// registerOutputSteps registers output verification steps.
func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the output should be valid CSV$`, testCtx.theOutputShouldBeValidCSV)
	sc.Step(`^the CSV header should list the decode columns$`, testCtx.theCSVHeaderShouldListTheDecodeColumns)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
}

// registerFileSteps registers file verification steps.
func (testCtx *TestContext) registerFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the results should be written to "([^"]*)"$`, testCtx.theResultsShouldBeWrittenTo)
}

// registerEnvironmentSteps registers environment setup steps.
func (testCtx *TestContext) registerEnvironmentSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}

// registerHelpSteps registers help and documentation steps.
func (testCtx *TestContext) registerHelpSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain usage information$`, testCtx.theOutputShouldContainUsageInformation)
	sc.Step(`^the output should list available flags$`, testCtx.theOutputShouldListAvailableFlags)
	sc.Step(`^the output should list available subcommands$`, testCtx.theOutputShouldListAvailableSubcommands)
	sc.Step(`^build information should be included$`, testCtx.buildInformationShouldBeIncluded)
}

// RegisterCommonSteps registers all shared step definitions.
func RegisterCommonSteps(sc *godog.ScenarioContext, testCtx *TestContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
	testCtx.registerFileSteps(sc)
	testCtx.registerEnvironmentSteps(sc)
	testCtx.registerHelpSteps(sc)
}
