package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
)

// writeTempFixture writes raw bytes into the scenario temp dir.
func (testCtx *TestContext) writeTempFixture(filename string, data []byte) error {
	path := testCtx.tempPath(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write fixture %s: %w", filename, err)
	}
	testCtx.TrackFile(path)
	return nil
}

// aFileThatIsNotAValidPDF creates a file with a .pdf name but no PDF
// structure at all.
func (testCtx *TestContext) aFileThatIsNotAValidPDF(filename string) error {
	return testCtx.writeTempFixture(filename, []byte("plain text masquerading as a PDF document\n"))
}

// aTruncatedPDFFile creates a file that starts like a PDF but is cut
// off before any usable structure.
func (testCtx *TestContext) aTruncatedPDFFile(filename string) error {
	return testCtx.writeTempFixture(filename, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"))
}

// RegisterPDFSteps wires the PDF fixture step definitions.
func RegisterPDFSteps(sc *godog.ScenarioContext, testCtx *TestContext) {
	sc.Step(`^a file "([^"]*)" that is not a valid PDF$`, testCtx.aFileThatIsNotAValidPDF)
	sc.Step(`^a truncated PDF file "([^"]*)"$`, testCtx.aTruncatedPDFFile)
}
