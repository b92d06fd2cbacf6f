package support

import (
	"errors"
	"strings"

	"github.com/cucumber/godog"
)

// theErrorShouldMentionFileNotFound verifies a missing input error.
func (testCtx *TestContext) theErrorShouldMentionFileNotFound() error {
	if err := testCtx.theErrorShouldMention("no such file"); err == nil {
		return nil
	}
	return testCtx.theErrorShouldMention("not found")
}

// theErrorShouldMentionNoInputFilesProvided verifies the empty-args error.
func (testCtx *TestContext) theErrorShouldMentionNoInputFilesProvided() error {
	return testCtx.theErrorShouldMention("no input files provided")
}

// theErrorShouldMentionUnsupportedImageFormat verifies the extension check.
func (testCtx *TestContext) theErrorShouldMentionUnsupportedImageFormat() error {
	return testCtx.theErrorShouldMention("unsupported image format")
}

// theErrorShouldMentionNoBarcodeFound verifies the exhausted-scan error.
func (testCtx *TestContext) theErrorShouldMentionNoBarcodeFound() error {
	return testCtx.theErrorShouldMention("no barcode found")
}

// theErrorShouldMentionInvalidOutputFormat verifies the format check.
func (testCtx *TestContext) theErrorShouldMentionInvalidOutputFormat() error {
	return testCtx.theErrorShouldMention("invalid output format")
}

// theErrorShouldMentionInvalidPageRange verifies the page range check.
func (testCtx *TestContext) theErrorShouldMentionInvalidPageRange() error {
	return testCtx.theErrorShouldMention("invalid page range")
}

// theErrorShouldMentionUnknownFlag verifies flag parsing errors.
func (testCtx *TestContext) theErrorShouldMentionUnknownFlag() error {
	return testCtx.theErrorShouldMention("unknown flag")
}

// theErrorShouldMentionInvalidPort verifies the serve port check.
func (testCtx *TestContext) theErrorShouldMentionInvalidPort() error {
	return testCtx.theErrorShouldMention("invalid port")
}

// theErrorShouldSuggestAvailableCommands verifies the unknown-command
// help hint.
func (testCtx *TestContext) theErrorShouldSuggestAvailableCommands() error {
	suggestionIndicators := []string{"available", "commands", "help", "usage"}
	haystack := strings.ToLower(testCtx.combinedOutput())
	for _, indicator := range suggestionIndicators {
		if strings.Contains(haystack, indicator) {
			return nil
		}
	}
	return errors.New("error does not suggest available commands")
}

// theOutputShouldContainTheFailureTips verifies the detection advice
// printed after an exhausted scan.
func (testCtx *TestContext) theOutputShouldContainTheFailureTips() error {
	tips := []string{"No barcode found after trying", "Tips for better detection:"}
	for _, tip := range tips {
		if !strings.Contains(testCtx.LastOutput, tip) {
			return errors.New("output does not contain the detection tips")
		}
	}
	return nil
}

// RegisterErrorSteps registers error verification step definitions.
func RegisterErrorSteps(sc *godog.ScenarioContext, testCtx *TestContext) {
	sc.Step(`^the error should mention "file not found" or "no such file"$`, testCtx.theErrorShouldMentionFileNotFound)
	sc.Step(`^the error should mention "no input files provided"$`, testCtx.theErrorShouldMentionNoInputFilesProvided)
	sc.Step(`^the error should mention "unsupported image format"$`, testCtx.theErrorShouldMentionUnsupportedImageFormat)
	sc.Step(`^the error should mention "no barcode found"$`, testCtx.theErrorShouldMentionNoBarcodeFound)
	sc.Step(`^the error should mention "invalid output format"$`, testCtx.theErrorShouldMentionInvalidOutputFormat)
	sc.Step(`^the error should mention "invalid page range"$`, testCtx.theErrorShouldMentionInvalidPageRange)
	sc.Step(`^the error should mention "unknown flag"$`, testCtx.theErrorShouldMentionUnknownFlag)
	sc.Step(`^the error should mention "invalid port"$`, testCtx.theErrorShouldMentionInvalidPort)
	sc.Step(`^the error should suggest available commands$`, testCtx.theErrorShouldSuggestAvailableCommands)
	sc.Step(`^the output should contain the failure tips$`, testCtx.theOutputShouldContainTheFailureTips)
}
