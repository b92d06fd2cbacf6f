package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFixture pairs a test input image with the decode outcome it
// should produce.
type TestFixture struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputFile   string                 `json:"input_file"`
	Expected    DecodeExpectation      `json:"expected"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// DecodeExpectation describes what scanning a fixture input should
// yield. Decodable false marks inputs that are expected to fail, which
// is as much a part of the contract as the successes.
type DecodeExpectation struct {
	Decodable bool   `json:"decodable"`
	Format    string `json:"format,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// LoadFixture loads a test fixture from its JSON file.
func LoadFixture(t *testing.T, name string) TestFixture {
	t.Helper()

	fixturePath := filepath.Join(GetFixturesDir(t), name+".json")

	data, err := os.ReadFile(fixturePath) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err, "Failed to read fixture file: %s", fixturePath)

	var fixture TestFixture
	err = json.Unmarshal(data, &fixture)
	require.NoError(t, err, "Failed to unmarshal fixture JSON")

	return fixture
}

// SaveFixture saves a test fixture to a JSON file.
func SaveFixture(t *testing.T, fixture TestFixture) {
	t.Helper()

	fixturesDir := GetFixturesDir(t)
	require.NoError(t, EnsureDir(fixturesDir))

	fixturePath := filepath.Join(fixturesDir, fixture.Name+".json")

	data, err := json.MarshalIndent(fixture, "", "  ")
	require.NoError(t, err, "Failed to marshal fixture to JSON")

	err = os.WriteFile(fixturePath, data, 0o600)
	require.NoError(t, err, "Failed to write fixture file: %s", fixturePath)
}

// SampleFixtures returns the fixtures matching the standard test image
// set. The payloads are exact because the inputs are synthesized from
// them.
func SampleFixtures() []TestFixture {
	return []TestFixture{
		{
			Name:        "qr_url",
			Description: "Clean QR code carrying a URL payload",
			InputFile:   "images/clean/qr_url.png",
			Expected: DecodeExpectation{
				Decodable: true,
				Format:    "qr",
				Payload:   "https://example.com/item/42",
			},
		},
		{
			Name:        "code128_plain",
			Description: "Clean Code 128 symbol with an ASCII payload",
			InputFile:   "images/clean/code128_plain.png",
			Expected: DecodeExpectation{
				Decodable: true,
				Format:    "code128",
				Payload:   "BARGO-128-TEST",
			},
		},
		{
			Name:        "ean13_retail",
			Description: "Clean EAN-13 retail code",
			InputFile:   "images/clean/ean13_retail.png",
			Expected: DecodeExpectation{
				Decodable: true,
				Format:    "ean13",
				Payload:   "5901234123457",
			},
		},
		{
			Name:        "qr_inverted",
			Description: "Light-on-dark QR code, needs the invert variant",
			InputFile:   "images/degraded/qr_inverted.png",
			Expected: DecodeExpectation{
				Decodable: true,
				Format:    "qr",
				Payload:   "https://example.com/item/42",
			},
			Metadata: map[string]interface{}{
				"variant_hint": "invert",
			},
		},
		{
			Name:        "qr_rot45",
			Description: "QR code rotated 45 degrees, beyond what the readers handle",
			InputFile:   "images/rotated/qr_rot45.png",
			Expected: DecodeExpectation{
				Decodable: false,
			},
		},
	}
}

// CreateSampleFixtures writes the sample fixtures to the fixtures
// directory.
func CreateSampleFixtures(t *testing.T) {
	t.Helper()

	for _, fixture := range SampleFixtures() {
		SaveFixture(t, fixture)
	}
}

// GetFixtureInputPath returns the full path to a fixture's input file.
func GetFixtureInputPath(t *testing.T, fixture TestFixture) string {
	t.Helper()

	return filepath.Join(GetTestDataDir(t), fixture.InputFile)
}

// ValidateFixture validates that a fixture's input file exists.
func ValidateFixture(t *testing.T, fixture TestFixture) {
	t.Helper()

	inputPath := GetFixtureInputPath(t, fixture)
	require.True(t, FileExists(inputPath), "Fixture input file does not exist: %s", inputPath)
}
